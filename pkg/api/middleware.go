package api

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nineking424/nificdc-sub002/pkg/metrics"
	"github.com/nineking424/nificdc-sub002/pkg/ratelimit"
)

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// rateLimitMiddleware admits requests through the adaptive token
// bucket and answers rejections with the standard envelope.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		decision := s.limiter.Check(limitRequest(r))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":               "rate_limited",
			"message":             "request rate exceeds the current budget",
			"retry_after_seconds": int(decision.RetryAfter.Seconds()),
			"limit":               decision.Limit,
			"window_ms":           decision.WindowMS,
			"type":                "rate_limit_exceeded",
		})
	})
}

// limitRequest builds the limiter identity from request metadata. Role
// and user id travel in headers set by the fronting proxy.
func limitRequest(r *http.Request) ratelimit.Request {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}
	role := ratelimit.Role(r.Header.Get("X-Role"))
	if role == "" {
		role = ratelimit.RoleAnonymous
	}
	return ratelimit.Request{
		Role:      role,
		IP:        ip,
		UserID:    r.Header.Get("X-User-ID"),
		Path:      r.URL.Path,
		UserAgent: r.UserAgent(),
		Country:   r.Header.Get("X-Country"),
	}
}
