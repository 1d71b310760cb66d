// Package audit ingests audit events and turns suspicious patterns
// into alerts.
//
// # Ingestion
//
// Submit buffers events and flushes them to storage in batches, either
// when the buffer reaches its size limit (default 100) or on the flush
// interval (default 30s). Critical security event types, such as
// UnauthorizedAccessAttempt or PrivilegeEscalation, flush immediately
// so they are durable before the triggering request returns. A failed
// flush retains the batch for the next attempt, bounded so a long
// storage outage cannot grow the buffer without limit.
//
// # Alerting
//
// Every submitted event is evaluated against the enabled alert rules.
// A rule matches on event type, actor role, action, resource kind and
// severity filters; matching events feed a sliding-window counter per
// (rule, group key), where the group key concatenates the event fields
// named in the rule's group_by. When the window reaches the rule's
// threshold two gates apply in order: the rule's global rate limit
// (default 10 alerts per 5 minutes), then the per-group cooldown
// (default 60s). A fired alert is kept in a bounded history, recorded
// as a SecurityAlertGenerated audit event (which deliberately skips
// rule evaluation, so alerts cannot cascade) and dispatched to each of
// the rule's action sinks best-effort with bounded retry.
package audit
