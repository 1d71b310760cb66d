// Package runner executes queued job executions against a bounded
// worker pool.
//
// Admission pops the priority queue (priority desc, queued_at asc)
// whenever the pool has capacity, holding at most one running
// execution per job. Each admitted execution loads its mapping and
// schemas, streams source batches through the mapping engine into the
// target sink, and appends a checkpoint at every phase boundary.
//
// Timeouts and operator cancellation share one signal path: the
// execution context is cancelled, the sink is aborted within a grace
// period, and the terminal status distinguishes timeout from
// cancelled. Failed executions retry after retry_delay_seconds until
// max_retries, each retry chained to its parent via
// parent_execution_id.
package runner
