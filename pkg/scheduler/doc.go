// Package scheduler dispatches due jobs into the execution queue.
//
// A fixed tick (default 30s) and explicit change notifications both
// drive the same pass: query executable jobs, re-read each one to
// absorb concurrent edits, check dependencies, enqueue a scheduled
// execution, and advance next_execution_at. One-shot schedules are
// disarmed after firing; an immediate schedule degenerates to manual.
//
// The job status state machine (activate, pause, resume) also lives
// here so every transition wakes the dispatch loop.
package scheduler
