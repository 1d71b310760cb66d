// Package metrics exposes Prometheus instrumentation.
//
// All collectors are package-level variables registered in init and
// updated directly by the owning subsystems (runner, scheduler,
// sandbox, api, audit, telemetry). Collector additionally samples
// store-derived gauges, such as job counts by status, on a fixed
// interval. Handler serves the standard /metrics endpoint.
package metrics
