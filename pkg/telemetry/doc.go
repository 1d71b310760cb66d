// Package telemetry is the in-process metrics hub for operator-facing
// statistics, distinct from the Prometheus instrumentation in
// pkg/metrics.
//
// Samples (name, value, tags, ts) enter a bounded buffer flushed on an
// interval into per-metric raw rings with 24 h retention. A background
// task rebuilds roll-ups every minute at 1m/5m/15m/1h/6h/1d windows,
// each bucket carrying min/max/avg/median/p95/sum/count, with
// per-interval retention.
//
// Query serves time-ordered roll-up buckets; RealtimeStats summarizes
// raw samples over a trailing window; Anomalies flags last-hour
// samples outside mean ± z·stddev of the trailing day. Per-metric
// warning and critical thresholds convert crossing samples into
// PerformanceAlert events submitted to the audit manager, which owns
// alert fan-out.
package telemetry
