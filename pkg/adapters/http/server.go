// Package http exposes the transition engine as a JSON API over HTTP, with
// a server-sent-events stream for hosts that render from push events.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/MuiGoku123432/adoflow/internal/logging"
	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// Engine defines the interface for the transition engine core.
type Engine interface {
	BeginTransition(ctx context.Context, workItemID int) (*domain.TransitionResult, error)
	FinishTransition(ctx context.Context, correlationID string, values map[string]any) (*domain.TransitionOutcome, error)
	CancelTransition(ctx context.Context, correlationID string) error
	PreviewTransition(ctx context.Context, workItemID int) (*domain.TransitionPreview, error)
	InvalidatePreview(workItemID int)
	InvalidateAllPreviews()
}

// Server routes HTTP requests to the engine and broadcasts engine events to
// SSE subscribers.
type Server struct {
	engine  Engine
	streams *StreamManager
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler mounts a metrics endpoint (e.g. promhttp) at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates the HTTP surface for an engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router for the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/transitions/{workItemID}/begin", s.begin)
	r.Post("/transitions/finish", s.finish)
	r.Post("/transitions/cancel", s.cancel)
	r.Get("/workitems/{workItemID}/preview", s.preview)
	r.Delete("/workitems/{workItemID}/preview", s.invalidatePreview)
	r.Delete("/previews", s.invalidateAllPreviews)
	r.Get("/events", s.subscribeEvents)
	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return enableCORS(r)
}

// Hooks returns lifecycle hooks that broadcast engine events to SSE
// subscribers. Wire these into the engine at composition time.
func (s *Server) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnFieldsRequired: func(ctx context.Context, ev *domain.FieldsRequiredEvent) {
			s.broadcast("fields_required", ev.WorkItemID, ev)
		},
		OnTransitionCompleted: func(ctx context.Context, ev *domain.TransitionCompletedEvent) {
			s.broadcast("transition_completed", ev.WorkItemID, ev)
		},
		OnTransitionRejected: func(ctx context.Context, ev *domain.TransitionRejectedEvent) {
			s.broadcast("transition_rejected", ev.WorkItemID, ev)
		},
	}
}

func (s *Server) broadcast(event string, workItemID int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload", "event", event, "err", err)
		return
	}
	s.streams.Broadcast(Message{Event: event, WorkItemID: workItemID, Data: string(data)})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) begin(w http.ResponseWriter, r *http.Request) {
	id, ok := s.workItemID(w, r)
	if !ok {
		return
	}

	result, err := s.engine.BeginTransition(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNoTransitionAvailable) {
			// A terminal workflow state is a valid answer, not a failure.
			writeJSON(w, http.StatusOK, map[string]any{
				"status":       "none",
				"work_item_id": id,
			})
			return
		}
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type finishRequest struct {
	CorrelationID string         `json:"correlation_id"`
	Values        map[string]any `json:"values"`
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request) {
	var body finishRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("finish: invalid request body", "err", err)
		return
	}
	if body.CorrelationID == "" {
		http.Error(w, "correlation_id is required", http.StatusBadRequest)
		return
	}

	outcome, err := s.engine.FinishTransition(r.Context(), body.CorrelationID, body.Values)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type cancelRequest struct {
	CorrelationID string `json:"correlation_id"`
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	var body cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.engine.CancelTransition(r.Context(), body.CorrelationID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.workItemID(w, r)
	if !ok {
		return
	}

	p, err := s.engine.PreviewTransition(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) invalidatePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.workItemID(w, r)
	if !ok {
		return
	}
	s.engine.InvalidatePreview(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) invalidateAllPreviews(w http.ResponseWriter, r *http.Request) {
	s.engine.InvalidateAllPreviews()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// subscribeEvents streams engine events over SSE. An optional work_item_id
// query parameter filters the stream to one item.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	filter := 0
	if raw := r.URL.Query().Get("work_item_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid work_item_id", http.StatusBadRequest)
			return
		}
		filter = parsed
	}

	ch, cancel := s.streams.Subscribe(filter)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
			flusher.Flush()
		}
	}
}

func (s *Server) workItemID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "workItemID")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid work item id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeError maps the engine error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var rejected *domain.RejectedError

	switch {
	case errors.Is(err, domain.ErrCorrelationNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":    validation.Error(),
			"ref_name": validation.RefName,
		})
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusConflict, map[string]string{"error": rejected.Error()})
	default:
		s.logger.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}
