// Package prefs persists user preference overlays consumed by the
// config resolver.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/profundo-ai/profundo/internal/db"
)

// store is the consumer interface for preference persistence.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repository stores the preference tree as one JSON value.
type Repository struct {
	store  store
	prefix string
}

// New creates a preferences repository.
func New(s store, keyPrefix string) *Repository {
	return &Repository{store: s, prefix: keyPrefix}
}

func (r *Repository) key() string { return r.prefix + "prefs" }

// Get loads the stored preference overlay. A missing record returns an
// empty overlay, not an error.
func (r *Repository) Get(ctx context.Context) (map[string]any, error) {
	data, err := r.store.Get(ctx, r.key())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	var prefs map[string]any
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return prefs, nil
}

// Put replaces the stored preference overlay.
func (r *Repository) Put(ctx context.Context, prefs map[string]any) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := r.store.Set(ctx, r.key(), data); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
