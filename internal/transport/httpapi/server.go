// Package httpapi exposes the research pipeline over HTTP: JSON
// endpoints for the library and preferences, SSE streams for research
// and chat.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/db"
	"github.com/profundo-ai/profundo/internal/domain"
	runrepo "github.com/profundo-ai/profundo/internal/repository/runs"
	"github.com/profundo-ai/profundo/internal/runs"
	"github.com/profundo-ai/profundo/internal/usecase/chat"
	"github.com/profundo-ai/profundo/internal/usecase/image"
	"github.com/profundo-ai/profundo/internal/usecase/research"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest       = "bad_request"
	codeUnauthorized     = "unauthorized"
	codeValidationFailed = "validation_failed"
	codeNotFound         = "not_found"
	codeProviderError    = "provider_error"
	codeInternalError    = "internal_error"
)

// Researcher runs pipelines and estimates their cost.
type Researcher interface {
	Run(
		ctx context.Context,
		runID string,
		req domain.ResearchRequest,
		userSettings map[string]any,
		emit research.Emitter,
	) (*domain.ResearchResponse, error)
	Estimate(pref domain.Preference, depth domain.Depth) (*research.CostEstimate, error)
}

// ChatStreamer streams follow-up answers.
type ChatStreamer interface {
	Stream(ctx context.Context, req chat.Request, onDelta func(delta string) error) error
}

// ImageGenerator creates report illustrations.
type ImageGenerator interface {
	Generate(ctx context.Context, req image.Request) (image.Result, error)
}

// Library manages saved runs and the preference overlay.
type Library interface {
	SaveRun(ctx context.Context, req domain.ResearchRequest, resp domain.ResearchResponse) error
	GetRun(ctx context.Context, id string) (runrepo.Record, error)
	ListRuns(ctx context.Context) ([]runrepo.Record, error)
	DeleteRun(ctx context.Context, id string) error
	GetPreferences(ctx context.Context) (map[string]any, error)
	PutPreferences(ctx context.Context, overlay map[string]any) error
}

// Server is the HTTP API server.
type Server struct {
	research Researcher
	chat     ChatStreamer
	images   ImageGenerator
	library  Library
	registry *runs.Registry
	pinger   db.Pinger
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	researcher Researcher,
	chatSvc ChatStreamer,
	images ImageGenerator,
	library Library,
	registry *runs.Registry,
	pinger db.Pinger,
	logger *zap.Logger,
) *Server {
	return &Server{
		research: researcher,
		chat:     chatSvc,
		images:   images,
		library:  library,
		registry: registry,
		pinger:   pinger,
		logger:   logger,
	}
}

// Routes mounts all endpoints onto router.
func (s *Server) Routes(router chi.Router) {
	router.Post("/api/research", s.handleResearch)
	router.Get("/api/research/estimate", s.handleEstimate)

	router.Get("/api/runs", s.handleListActiveRuns)
	router.Get("/api/runs/{id}", s.handleGetRun)
	router.Delete("/api/runs/{id}", s.handleCancelRun)

	router.Post("/api/chat", s.handleChat)
	router.Post("/api/images", s.handleImages)

	router.Get("/api/preferences", s.handleGetPreferences)
	router.Put("/api/preferences", s.handlePutPreferences)

	router.Get("/api/library", s.handleListLibrary)
	router.Get("/api/library/{id}", s.handleGetLibraryRun)
	router.Delete("/api/library/{id}", s.handleDeleteLibraryRun)

	router.Get("/health", s.handleHealth)
	router.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// handleResearch runs a research pipeline, streaming events as SSE.
// The run id is announced in the X-Run-Id header so clients can cancel
// mid-stream via DELETE /api/runs/{id}.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req domain.ResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	prefs, err := s.library.GetPreferences(r.Context())
	if err != nil {
		// A broken preference store must not block research.
		s.logger.Warn("loading preferences failed, using defaults", zap.Error(err))
		prefs = map[string]any{}
	}

	runID := uuid.NewString()
	ctx := s.registry.Begin(r.Context(), runID, req.Query, req.Depth)
	defer s.registry.Finish(runID, nil)

	w.Header().Set("X-Run-Id", runID)
	stream, err := NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternalError, err.Error())
		return
	}
	defer stream.Close()

	resp, runErr := s.research.Run(ctx, runID, req, prefs, stream)
	s.registry.Finish(runID, runErr)
	if runErr != nil {
		return
	}

	if err := s.library.SaveRun(r.Context(), req, *resp); err != nil {
		s.logger.Error("saving run to library failed",
			zap.String("run_id", runID),
			zap.Error(err),
		)
	}
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	est, err := s.research.Estimate(
		domain.Preference(r.URL.Query().Get("preference")),
		domain.Depth(r.URL.Query().Get("depth")),
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (s *Server) handleListActiveRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.registry.List()})
}

// handleGetRun reports one run: active runs come from the registry,
// finished ones from the library.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if snap, err := s.registry.Get(id); err == nil {
		writeJSON(w, http.StatusOK, snap)
		return
	}

	rec, err := s.library.GetRun(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Cancel(chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleChat streams the answer as text-delta events.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "messages are required")
		return
	}

	stream, err := NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternalError, err.Error())
		return
	}
	defer stream.Close()

	err = s.chat.Stream(r.Context(), req, func(delta string) error {
		return stream.Emit(domain.TextDeltaEvent{Delta: delta})
	})
	if err != nil {
		s.logger.Warn("chat stream failed", zap.Error(err))
		_ = stream.Emit(domain.ErrorEvent{Message: err.Error()})
	}
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	var req image.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := s.images.Generate(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.library.GetPreferences(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var overlay map[string]any
	if err := json.NewDecoder(r.Body).Decode(&overlay); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.library.PutPreferences(r.Context(), overlay); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	records, err := s.library.ListRuns(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": records})
}

func (s *Server) handleGetLibraryRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.library.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteLibraryRun(w http.ResponseWriter, r *http.Request) {
	if err := s.library.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	status, httpStatus := "ok", http.StatusOK
	if err := s.pinger.Ping(r.Context()); err != nil {
		checks["database"] = "unavailable"
		status, httpStatus = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{"status": status, "checks": checks})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrRunNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, domain.ErrTransientProvider), errors.Is(err, domain.ErrSchemaViolation):
		s.logger.Warn("provider error", zap.Error(err))
		writeError(w, http.StatusBadGateway, codeProviderError, "upstream provider error")
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
