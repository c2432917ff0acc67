// Package library manages saved research runs and the stored user
// preference overlay.
package library

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/domain"
	runrepo "github.com/profundo-ai/profundo/internal/repository/runs"
	"github.com/profundo-ai/profundo/internal/runconfig"
)

// RunStore persists finished run records.
type RunStore interface {
	Save(ctx context.Context, rec runrepo.Record) error
	Get(ctx context.Context, id string) (runrepo.Record, error)
	List(ctx context.Context) ([]runrepo.Record, error)
	Delete(ctx context.Context, id string) error
}

// PrefStore persists the user preference overlay.
type PrefStore interface {
	Get(ctx context.Context) (map[string]any, error)
	Put(ctx context.Context, prefs map[string]any) error
}

// Service is the library use case.
type Service struct {
	runs   RunStore
	prefs  PrefStore
	logger *zap.Logger
}

// New creates the library service.
func New(runs RunStore, prefs PrefStore, logger *zap.Logger) *Service {
	return &Service{runs: runs, prefs: prefs, logger: logger}
}

// SaveRun stores a completed run so it can be revisited later.
func (s *Service) SaveRun(ctx context.Context, req domain.ResearchRequest, resp domain.ResearchResponse) error {
	rec := runrepo.Record{
		ID:        resp.Metadata.RunID,
		Query:     req.Query,
		Depth:     resp.Metadata.Depth,
		Response:  resp,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.runs.Save(ctx, rec); err != nil {
		return err
	}
	s.logger.Debug("run saved to library", zap.String("run_id", rec.ID))
	return nil
}

// GetRun loads one saved run.
func (s *Service) GetRun(ctx context.Context, id string) (runrepo.Record, error) {
	return s.runs.Get(ctx, id)
}

// ListRuns returns all saved runs, newest first.
func (s *Service) ListRuns(ctx context.Context) ([]runrepo.Record, error) {
	return s.runs.List(ctx)
}

// DeleteRun removes a saved run. Idempotent.
func (s *Service) DeleteRun(ctx context.Context, id string) error {
	return s.runs.Delete(ctx, id)
}

// GetPreferences loads the stored overlay. Missing storage yields an
// empty overlay.
func (s *Service) GetPreferences(ctx context.Context) (map[string]any, error) {
	return s.prefs.Get(ctx)
}

// PutPreferences validates and replaces the stored overlay. The
// overlay must still produce a decodable merged configuration.
func (s *Service) PutPreferences(ctx context.Context, overlay map[string]any) error {
	if overlay == nil {
		overlay = map[string]any{}
	}
	if _, err := runconfig.Resolve(domain.DepthNormal, overlay, nil); err != nil {
		return fmt.Errorf("%w: preference overlay does not merge cleanly: %v", domain.ErrValidation, err)
	}
	if err := s.prefs.Put(ctx, overlay); err != nil {
		return err
	}
	s.logger.Info("preferences updated")
	return nil
}
