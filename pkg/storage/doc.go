/*
Package storage provides BoltDB-backed persistence for the nificdc
execution core.

The package implements the Store interface using BoltDB, giving ACID
transactions over systems, schemas, mappings, jobs, executions, audit
events and alert rules. All data is serialized as JSON and kept in
separate buckets:

	┌──────────────── BOLTDB STORAGE ──────────────────┐
	│  File: <dataDir>/nificdc.db                       │
	│                                                    │
	│  systems        (System ID)                        │
	│  schemas        (Schema ID)                        │
	│  mappings       (Mapping ID)                       │
	│  jobs           (Job ID)                           │
	│  executions     (JobExecution ID)                  │
	│  execution_ids  (execution_id → ID, unique index)  │
	│  audit_events   (big-endian sequence → event)      │
	│  alert_rules    (AlertRule ID)                     │
	└────────────────────────────────────────────────────┘

# Invariants enforced at the gateway

  - Optimistic concurrency: every mutating call carries the caller's
    expected Version; mismatch yields a conflict error and the caller
    must refetch.
  - Uniqueness of system names, of (system_id, name, schema_version),
    and of execution_id (via the execution_ids index bucket).
  - Referential integrity: schemas require their system, mappings their
    schemas, jobs their mapping, executions their job. Deletes are
    rejected while dependents exist.
  - Audit events are append-only, keyed by a monotonically increasing
    bucket sequence so ListAuditEvents can walk newest-first with a
    reverse cursor.
  - Terminal executions are immutable; UpdateExecution rejects writes
    once a record has reached completed/failed/cancelled/timeout.

# Derived-field hooks

Mapping validation and next-firing-time computation live in pkg/mapping
and pkg/schedule. To keep the dependency direction clean the gateway
calls them through Hooks wired at startup: ValidateMapping runs before a
mapping is persisted, NextExecutionAt recomputes job.next_execution_at
whenever the schedule or active flag changes.

# Error classification

Typed errors from pkg/errdefs pass through unchanged; low-level BoltDB
failures are classified as storage_unavailable, which callers in the
runner hot path retry with backoff.

ListExecutableJobs is the scheduler's hot query: active jobs with
status=scheduled and next_execution_at <= now, ordered by priority desc
then next_execution_at asc.

# See Also

  - pkg/scheduler for the dispatch loop built on ListExecutableJobs
  - pkg/runner for the execution state transitions written here
  - pkg/audit for the batched writer of audit_events
*/
package storage
