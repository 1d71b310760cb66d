package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/events"
	"github.com/nineking424/nificdc-sub002/pkg/log"
	"github.com/nineking424/nificdc-sub002/pkg/mapping"
	"github.com/nineking424/nificdc-sub002/pkg/metrics"
	"github.com/nineking424/nificdc-sub002/pkg/ratelimit"
	"github.com/nineking424/nificdc-sub002/pkg/record"
	"github.com/nineking424/nificdc-sub002/pkg/storage"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// Server is the HTTP surface: health, prometheus metrics, execution
// and audit queries, mapping preview, and the websocket event stream.
type Server struct {
	store   storage.Store
	engine  *mapping.Engine
	limiter *ratelimit.Limiter
	broker  *events.Broker
	logger  zerolog.Logger

	httpSrv *http.Server
	started time.Time
}

// NewServer wires the HTTP handlers. The limiter and broker may be nil
// (rate limiting and the websocket stream are then disabled).
func NewServer(store storage.Store, engine *mapping.Engine, limiter *ratelimit.Limiter, broker *events.Broker) *Server {
	s := &Server{
		store:   store,
		engine:  engine,
		limiter: limiter,
		broker:  broker,
		logger:  log.WithComponent("api"),
		started: time.Now(),
	}

	r := mux.NewRouter()
	r.Use(s.metricsMiddleware)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.rateLimitMiddleware)
	v1.HandleFunc("/executions", s.handleListExecutions).Methods(http.MethodGet)
	v1.HandleFunc("/executions/{id}", s.handleGetExecution).Methods(http.MethodGet)
	v1.HandleFunc("/audit", s.handleListAudit).Methods(http.MethodGet)
	v1.HandleFunc("/mappings/{id}/preview", s.handlePreview).Methods(http.MethodPost)

	s.httpSrv = &http.Server{
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	s.logger.Info().Str("addr", addr).Msg("api server listening")
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.ExecutionFilter{
		JobID:  q.Get("job_id"),
		Status: types.ExecutionStatus(q.Get("status")),
		Limit:  intParam(q.Get("limit"), 100),
		Offset: intParam(q.Get("offset"), 0),
	}
	execs, err := s.store.ListExecutions(filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": execs, "count": len(execs)})
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ex, err := s.store.GetExecution(id)
	if errdefs.IsNotFound(err) {
		ex, err = s.store.GetExecutionByExecutionID(id)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.AuditFilter{
		EventType: q.Get("event_type"),
		UserID:    q.Get("user_id"),
		Resource:  q.Get("resource"),
		Severity:  types.Severity(q.Get("severity")),
		Limit:     intParam(q.Get("limit"), 100),
		Offset:    intParam(q.Get("offset"), 0),
	}
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, errdefs.Validation("invalid start time %q", v))
			return
		}
		filter.Start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, errdefs.Validation("invalid end time %q", v))
			return
		}
		filter.End = t
	}
	evs, err := s.store.ListAuditEvents(filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs, "count": len(evs)})
}

type previewRequest struct {
	Records         []record.Record `json:"records"`
	ContinueOnError bool            `json:"continue_on_error"`
}

// handlePreview runs a source batch through the mapping engine without
// touching any connector, returning per-record outcomes.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m, err := s.store.GetMapping(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errdefs.Validation("invalid preview body: %v", err))
		return
	}
	if len(req.Records) == 0 {
		s.writeError(w, errdefs.Validation("preview requires at least one record"))
		return
	}

	result, err := s.engine.Apply(r.Context(), m, req.Records, mapping.Options{ContinueOnError: req.ContinueOnError})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeError maps error kinds onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errdefs.KindOf(err) {
	case errdefs.KindValidation, errdefs.KindSandboxSyntax, errdefs.KindSandboxDenied, errdefs.KindSandboxComplexity:
		status = http.StatusBadRequest
	case errdefs.KindNotFound:
		status = http.StatusNotFound
	case errdefs.KindConflict:
		status = http.StatusConflict
	case errdefs.KindRateLimited:
		status = http.StatusTooManyRequests
	case errdefs.KindStorageUnavailable, errdefs.KindConnectorUnavail:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]any{
		"error":   string(errdefs.KindOf(err)),
		"message": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func intParam(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
