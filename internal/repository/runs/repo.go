// Package runs persists completed research run records (the library).
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/profundo-ai/profundo/internal/db"
	"github.com/profundo-ai/profundo/internal/domain"
)

// store is the consumer interface for run record persistence.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Record is one saved run in the library.
type Record struct {
	ID        string                  `json:"id"`
	Query     string                  `json:"query"`
	Depth     domain.Depth            `json:"depth"`
	Response  domain.ResearchResponse `json:"response"`
	CreatedAt time.Time               `json:"createdAt"`
}

// Repository stores run records as JSON values under
// <prefix>run:<id>.
type Repository struct {
	store  store
	prefix string
	ttl    time.Duration
}

// New creates a run repository. ttl of 0 keeps records forever.
func New(s store, keyPrefix string, ttl time.Duration) *Repository {
	return &Repository{store: s, prefix: keyPrefix, ttl: ttl}
}

func (r *Repository) key(id string) string {
	return r.prefix + "run:" + id
}

// Save persists a record.
func (r *Repository) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", rec.ID, err)
	}
	if r.ttl > 0 {
		if err := r.store.SetWithTTL(ctx, r.key(rec.ID), data, r.ttl); err != nil {
			return fmt.Errorf("save run %s: %w", rec.ID, err)
		}
		return nil
	}
	if err := r.store.Set(ctx, r.key(rec.ID), data); err != nil {
		return fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	return nil
}

// Get loads one record by id.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	data, err := r.store.Get(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return Record{}, domain.ErrNotFound
		}
		return Record{}, fmt.Errorf("load run %s: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode run %s: %w", id, err)
	}
	return rec, nil
}

// List returns all records, newest first.
func (r *Repository) List(ctx context.Context) ([]Record, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"run:*")
	if err != nil {
		return nil, fmt.Errorf("scan runs: %w", err)
	}

	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, r.prefix+"run:")
		rec, err := r.Get(ctx, id)
		if err != nil {
			// A record may expire between scan and get.
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Delete removes one record. Deleting a missing record is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	return nil
}
