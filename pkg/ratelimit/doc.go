// Package ratelimit is the adaptive admission controller in front of
// the HTTP API.
//
// Each identity (role:ip, plus user id when authenticated) owns a
// token bucket refilled proportionally to elapsed time. The bucket's
// capacity is recomputed on every arrival from a base budget of 100
// requests per 15 minutes, scaled by role (admin x10, operator x5,
// user x2), time of day (business hours x1.5, night x0.5), system
// load (above 80 halves, below 30 grows by 1.2) and trust (x2), with
// a hard floor of 10. Rejections carry a retry-after hint.
//
// Trusted CIDRs, the /health path, and the system role calling from
// an internal address bypass the limiter entirely.
//
// Alongside admission an anomaly score is computed per arrival from
// user-agent shape, request rate, geographic risk and time of day.
// Crossing 70 reports suspicious activity through the configured
// callback; the limiter itself never blocks on the score.
package ratelimit
