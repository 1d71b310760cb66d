/*
Package log provides structured logging for nificdc built on zerolog.

A single global logger is initialized once at process start via Init and
shared by all components. Child loggers carry a component field plus the
domain correlation fields (job_id, execution_id, mapping_id) so a single
execution can be traced across the scheduler, runner and mapping engine.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("runner")
	logger.Info().Str("execution_id", id).Msg("execution admitted")

Console output (human-readable, RFC3339 timestamps) is used when JSONOutput
is false; JSON output is intended for log shippers.

# See Also

  - pkg/scheduler, pkg/runner for the main producers of correlated logs
*/
package log
