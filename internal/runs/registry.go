// Package runs tracks in-flight research runs so they can be listed
// and cancelled while streaming.
package runs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/domain"
)

// State is the lifecycle state of a tracked run.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Snapshot is a point-in-time copy of one tracked run.
type Snapshot struct {
	ID        string       `json:"id"`
	Query     string       `json:"query"`
	Depth     domain.Depth `json:"depth"`
	State     State        `json:"state"`
	StartedAt time.Time    `json:"startedAt"`
}

type entry struct {
	snap   Snapshot
	cancel context.CancelFunc
}

// Registry tracks active runs. Finished runs are evicted; the
// persistent library keeps their results.
type Registry struct {
	mu     sync.Mutex
	active map[string]*entry
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		active: make(map[string]*entry),
		logger: logger,
	}
}

// Begin registers a run and returns a context that Cancel aborts.
func (r *Registry) Begin(ctx context.Context, id, query string, depth domain.Depth) context.Context {
	runCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.active[id] = &entry{
		snap: Snapshot{
			ID:        id,
			Query:     query,
			Depth:     depth,
			State:     StateRunning,
			StartedAt: time.Now().UTC(),
		},
		cancel: cancel,
	}
	r.mu.Unlock()

	return runCtx
}

// Finish marks a run done and evicts it. Calling Finish for an unknown
// or already-finished id is a no-op.
func (r *Registry) Finish(id string, runErr error) {
	r.mu.Lock()
	e, ok := r.active[id]
	if ok {
		delete(r.active, id)
		e.cancel()
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	state := StateCompleted
	switch {
	case errors.Is(runErr, context.Canceled):
		state = StateCancelled
	case runErr != nil:
		state = StateFailed
	}
	r.logger.Debug("run finished",
		zap.String("run_id", id),
		zap.String("state", string(state)),
	)
}

// Cancel aborts a running run. Cancelling twice, or after the run
// finished, returns domain.ErrRunNotFound.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	e, ok := r.active[id]
	if ok {
		e.snap.State = StateCancelled
		delete(r.active, id)
	}
	r.mu.Unlock()

	if !ok {
		return domain.ErrRunNotFound
	}
	e.cancel()
	r.logger.Info("run cancelled", zap.String("run_id", id))
	return nil
}

// Get returns a snapshot of one active run.
func (r *Registry) Get(id string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.active[id]
	if !ok {
		return Snapshot{}, domain.ErrRunNotFound
	}
	return e.snap, nil
}

// List returns snapshots of all active runs.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.active))
	for _, e := range r.active {
		out = append(out, e.snap)
	}
	return out
}
