package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/observability"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/runner"
	"github.com/aretw0/rewind/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the sessions of a Manager over HTTP.
type Server struct {
	Sessions    *session.Manager
	Interceptor runner.UnitInterceptor
	Gatherer    prometheus.Gatherer
	Events      *observability.Stream
	Logger      *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithInterceptor sets the policy applied to every submitted unit.
func WithInterceptor(i runner.UnitInterceptor) Option {
	return func(s *Server) {
		s.Interceptor = i
	}
}

// WithGatherer serves the metrics of g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// WithEvents streams the lifecycle events of s on /events.
func WithEvents(stream *observability.Stream) Option {
	return func(s *Server) {
		s.Events = stream
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = l
	}
}

type createRequest struct {
	ID string `json:"id,omitempty"`
}

type submitRequest struct {
	Payload string `json:"payload"`
}

type sessionResponse struct {
	ID    string `json:"id"`
	Depth int    `json:"depth"`
}

type submitResponse struct {
	Output   string `json:"output"`
	Failure  string `json:"failure,omitempty"`
	Snapshot int    `json:"snapshot_pid"`
	Depth    int    `json:"depth"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler creates a new HTTP handler for the session manager.
func NewHandler(mgr *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		Sessions:    mgr,
		Interceptor: runner.AutoApproveMiddleware(),
		Logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.Events != nil {
		r.Get("/events", s.StreamEvents)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Get("/", s.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/submit", s.Submit)
			r.Post("/undo", s.Undo)
			r.Get("/env", s.GetEnvironment)
			r.Get("/history", s.GetHistory)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.fail(w, http.StatusBadRequest, "invalid request body")
			s.Logger.Warn("CreateSession: invalid request body", "error", err)
			return
		}
	}

	sess, err := s.Sessions.Create(r.Context(), body.ID)
	if err != nil {
		s.failErr(w, "CreateSession", err)
		return
	}
	s.reply(w, http.StatusCreated, sessionResponse{ID: sess.ID(), Depth: sess.Depth()})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.Sessions.List()
	out := make([]sessionResponse, 0, len(ids))
	for _, id := range ids {
		err := s.Sessions.With(r.Context(), id, func(_ context.Context, sess ports.Session) error {
			out = append(out, sessionResponse{ID: id, Depth: sess.Depth()})
			return nil
		})
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			s.failErr(w, "ListSessions", err)
			return
		}
	}
	s.reply(w, http.StatusOK, out)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var resp sessionResponse
	err := s.Sessions.With(r.Context(), id, func(_ context.Context, sess ports.Session) error {
		resp = sessionResponse{ID: id, Depth: sess.Depth()}
		return nil
	})
	if err != nil {
		s.failErr(w, "GetSession", err)
		return
	}
	s.reply(w, http.StatusOK, resp)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Sessions.Close(r.Context(), id); err != nil {
		s.failErr(w, "DeleteSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Submit handles POST /sessions/{id}/submit.
func (s *Server) Submit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body")
		s.Logger.Warn("Submit: invalid request body", "error", err)
		return
	}

	payload, err := runner.SanitizeInput(body.Payload)
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
		s.Logger.Warn("Submit: rejected payload", "session_id", id, "error", err)
		return
	}
	if strings.TrimSpace(payload) == "" {
		s.fail(w, http.StatusBadRequest, "empty payload")
		return
	}

	allowed, reason, err := s.Interceptor(r.Context(), payload)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, fmt.Sprintf("policy error: %v", err))
		s.Logger.Error("Submit: interceptor failed", "session_id", id, "error", err)
		return
	}
	if !allowed {
		s.fail(w, http.StatusForbidden, reason)
		s.Logger.Warn("Submit: unit denied", "session_id", id, "reason", reason)
		return
	}

	var res domain.Result
	err = s.Sessions.With(r.Context(), id, func(ctx context.Context, sess ports.Session) error {
		var err error
		res, err = sess.Submit(ctx, payload)
		return err
	})
	if err != nil {
		s.failErr(w, "Submit", err)
		return
	}

	s.reply(w, http.StatusOK, submitResponse{
		Output:   res.Output,
		Failure:  res.Failure,
		Snapshot: res.Snapshot,
		Depth:    res.Depth,
	})
}

// Undo handles POST /sessions/{id}/undo.
func (s *Server) Undo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var depth int
	err := s.Sessions.With(r.Context(), id, func(ctx context.Context, sess ports.Session) error {
		if err := sess.Undo(ctx); err != nil {
			return err
		}
		depth = sess.Depth()
		return nil
	})
	if err != nil {
		s.failErr(w, "Undo", err)
		return
	}
	s.reply(w, http.StatusOK, sessionResponse{ID: id, Depth: depth})
}

// GetEnvironment handles GET /sessions/{id}/env.
func (s *Server) GetEnvironment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var bindings map[string]any
	err := s.Sessions.With(r.Context(), id, func(ctx context.Context, sess ports.Session) error {
		var err error
		bindings, err = sess.Environment(ctx)
		return err
	})
	if err != nil {
		s.failErr(w, "GetEnvironment", err)
		return
	}
	if bindings == nil {
		bindings = map[string]any{}
	}
	s.reply(w, http.StatusOK, bindings)
}

// GetHistory handles GET /sessions/{id}/history.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var entries []domain.Entry
	err := s.Sessions.With(r.Context(), id, func(ctx context.Context, sess ports.Session) error {
		var err error
		entries, err = sess.Transcript(ctx)
		return err
	})
	if err != nil {
		s.failErr(w, "GetHistory", err)
		return
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	s.reply(w, http.StatusOK, entries)
}

// StreamEvents handles GET /events: one JSON document per lifecycle event
// until the client goes away.
func (s *Server) StreamEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	enc := json.NewEncoder(w)
	for e := range s.Events.Subscribe(r.Context()) {
		if err := enc.Encode(e); err != nil {
			s.Logger.Debug("StreamEvents: client write failed", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.reply(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.reply(w, http.StatusOK, map[string]string{
		"app":     "rewind-http",
		"version": strings.TrimSpace(rewind.Version),
	})
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	var execErr *domain.ExecutionError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionExists), errors.Is(err, domain.ErrEmptyHistory):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.As(err, &execErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) failErr(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error(op+" failed", "error", err)
	} else {
		s.Logger.Debug(op+" rejected", "error", err, "status", status)
	}
	s.fail(w, status, err.Error())
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string) {
	s.reply(w, status, errorResponse{Error: msg})
}

func (s *Server) reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "error", err)
	}
}
