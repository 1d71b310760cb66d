// Package events is the in-process publish/subscribe bus.
//
// Producers (scheduler, runner, audit, telemetry) publish tagged
// events onto named channels: metrics, alerts, logs, jobs and system.
// Consumers subscribe to a subset of channels and receive events on a
// buffered Go channel. Delivery is best-effort and never blocks the
// publisher: a subscriber that falls behind loses events and its drop
// counter increments, which the websocket layer reports to the client.
package events
