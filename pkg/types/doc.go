/*
Package types defines the core entities of the nificdc execution core.

All entities are identified by opaque UUID strings and carry a Version
counter used for optimistic concurrency by pkg/storage. The package holds
data only; behavior lives in the component packages that own each entity:

  - System, Schema: pkg/storage, pkg/typereg, pkg/connector
  - Mapping, MappingRule: pkg/mapping
  - Job, Schedule: pkg/schedule, pkg/scheduler
  - JobExecution, Checkpoint: pkg/runner
  - AuditEvent, AlertRule, Alert: pkg/audit

# Status state machines

Job.Status:

	inactive → scheduled → running → scheduled | completed | failed
	scheduled | running → paused → scheduled

JobExecution.Status:

	queued → running → completed | failed | cancelled | timeout
	queued → cancelled

Terminal execution records are immutable; the runner never updates an
execution after it reaches a terminal status.
*/
package types
