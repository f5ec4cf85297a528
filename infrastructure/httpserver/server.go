// Package httpserver exposes the engine's two inbound paths over HTTP JSON:
// the synchronous admission evaluation endpoint called by the platform's
// admission chain, and the exception submission path used by operators and
// incident workflows. It also serves the audit export read path.
package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/breakglass-dev/breakglass/application/admission"
	"github.com/breakglass-dev/breakglass/application/lifecycle"
	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
	"github.com/breakglass-dev/breakglass/domain/ports"
)

// serverConfig holds configuration for the Server.
type serverConfig struct {
	logger *slog.Logger
	clock  ports.Clock
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		logger: slog.Default(),
		clock:  ports.SystemClock{},
	}
}

// Option configures the Server.
type Option func(*serverConfig)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *serverConfig) {
		c.logger = logger
	}
}

// WithClock sets the clock used to stamp requests lacking a timestamp.
func WithClock(clock ports.Clock) Option {
	return func(c *serverConfig) {
		c.clock = clock
	}
}

// Server routes HTTP traffic to the evaluator and lifecycle manager.
type Server struct {
	config    serverConfig
	evaluator *admission.Evaluator
	manager   *lifecycle.Manager
	audit     ports.AuditReader
	mux       *http.ServeMux
}

// NewServer wires the endpoints. audit may be nil when no export read path
// is available.
func NewServer(evaluator *admission.Evaluator, manager *lifecycle.Manager, audit ports.AuditReader, opts ...Option) *Server {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{config: cfg, evaluator: evaluator, manager: manager, audit: audit, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /v1/admission/evaluate", s.handleEvaluate)
	s.mux.HandleFunc("POST /v1/exceptions", s.handleCreateException)
	s.mux.HandleFunc("GET /v1/exceptions", s.handleListExceptions)
	s.mux.HandleFunc("GET /v1/exceptions/{id}", s.handleGetException)
	s.mux.HandleFunc("DELETE /v1/exceptions/{id}", s.handleRevokeException)
	s.mux.HandleFunc("GET /v1/audit", s.handleQueryAudit)
	return s
}

// Handler returns the route table as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req entities.AdmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &derrors.ValidationError{Field: "body", Reason: "malformed JSON", Err: err})
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = s.config.clock.Now()
	}

	decision, err := s.evaluator.Evaluate(r.Context(), &req)
	if err != nil {
		// The decision is already fail-closed; surface it with the
		// availability failure.
		s.writeJSON(w, http.StatusServiceUnavailable, decision)
		return
	}
	s.writeJSON(w, http.StatusOK, decision)
}

// createExceptionRequest is the wire form of a submission; duration comes in
// as a Go duration string, e.g. "60m".
type createExceptionRequest struct {
	RuleRefs      []string             `json:"ruleRefs"`
	Scope         entities.Scope       `json:"scope"`
	Conditions    []entities.Condition `json:"conditions,omitempty"`
	Requester     string               `json:"requester"`
	Justification string               `json:"justification"`
	IncidentID    string               `json:"incidentId,omitempty"`
	Duration      string               `json:"duration"`
}

func (s *Server) handleCreateException(w http.ResponseWriter, r *http.Request) {
	var body createExceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, &derrors.ValidationError{Field: "body", Reason: "malformed JSON", Err: err})
		return
	}
	duration, err := time.ParseDuration(body.Duration)
	if err != nil {
		s.writeError(w, &derrors.ValidationError{Field: "duration", Reason: "not a duration", Err: err})
		return
	}

	ex, err := s.manager.Create(r.Context(), lifecycle.Submission{
		RuleRefs:      body.RuleRefs,
		Scope:         body.Scope,
		Conditions:    body.Conditions,
		Requester:     body.Requester,
		Justification: body.Justification,
		IncidentID:    body.IncidentID,
		Duration:      duration,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ex)
}

func (s *Server) handleListExceptions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.List())
}

func (s *Server) handleGetException(w http.ResponseWriter, r *http.Request) {
	ex, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleRevokeException(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "revoked via API"
	}
	if err := s.manager.Revoke(r.Context(), r.PathValue("id"), reason); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueryAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.Error(w, "audit export not configured", http.StatusNotImplemented)
		return
	}
	q := r.URL.Query()
	filter := ports.AuditFilter{
		Actor:      q.Get("actor"),
		IncidentID: q.Get("incident"),
		Kind:       entities.AuditKind(q.Get("kind")),
	}
	for _, bound := range []struct {
		param string
		dst   *time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		if v := q.Get(bound.param); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				s.writeError(w, &derrors.ValidationError{Field: bound.param, Reason: "not an RFC 3339 time", Err: err})
				return
			}
			*bound.dst = t
		}
	}

	records, err := s.audit.Query(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var (
		validationErr *derrors.ValidationError
		durationErr   *derrors.DurationError
		conflictErr   *derrors.ConflictError
		notFoundErr   *derrors.NotFoundError
		storageErr    *derrors.StorageError
	)
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &durationErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &conflictErr):
		status = http.StatusConflict
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &storageErr):
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		s.config.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.config.logger.Error("failed to encode response", "error", err)
	}
}
