// Package api serves the HTTP surface: health and prometheus
// endpoints, execution and audit queries, mapping preview, and a
// websocket stream of broker events.
//
// The /api/v1 tree sits behind the adaptive rate limiter; rejections
// carry the standard envelope with a retry_after_seconds hint.
package api
