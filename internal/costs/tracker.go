// Package costs accumulates per-call token and USD cost entries for
// one pipeline run.
package costs

import (
	"sync"
	"time"

	"github.com/profundo-ai/profundo/internal/domain"
	"github.com/profundo-ai/profundo/internal/modelrouter"
)

// DefaultSearchCostUSD is the flat per-request price for search calls.
const DefaultSearchCostUSD = 0.005

// Entry is one append-only cost record. Never mutated after creation.
type Entry struct {
	Stage        domain.Stage `json:"stage"`
	ModelID      string       `json:"modelId"`
	InputTokens  int          `json:"inputTokens"`
	OutputTokens int          `json:"outputTokens"`
	CostUSD      float64      `json:"costUSD"`
	Timestamp    time.Time    `json:"timestamp"`
}

// Breakdown is a point-in-time view of accumulated cost.
type Breakdown struct {
	Entries  []Entry                 `json:"entries"`
	TotalUSD float64                 `json:"totalUSD"`
	ByStage  map[domain.Stage]float64 `json:"byStage"`
	ByModel  map[string]float64      `json:"byModel"`
}

// PriceFunc computes the USD cost of a model call. Unknown model ids
// must cost 0.
type PriceFunc func(modelID string, inputTokens, outputTokens int) float64

// Tracker accumulates cost entries for a single run. Appends are safe
// under concurrent callers from fanned-out stage work. One instance
// per run; never shared across runs.
type Tracker struct {
	mu      sync.Mutex
	entries []Entry
	price   PriceFunc
	now     func() time.Time
}

// NewTracker creates a tracker priced by the router's pricing table.
func NewTracker() *Tracker {
	return &Tracker{price: modelrouter.Cost, now: time.Now}
}

// WithPricing overrides the pricing function (tests).
func (t *Tracker) WithPricing(price PriceFunc) *Tracker {
	t.price = price
	return t
}

// AddEntry computes the cost of one model call, appends it, and
// returns the created entry.
func (t *Tracker) AddEntry(stage domain.Stage, modelID string, inputTokens, outputTokens int) Entry {
	entry := Entry{
		Stage:        stage,
		ModelID:      modelID,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      t.price(modelID, inputTokens, outputTokens),
		Timestamp:    t.now().UTC(),
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
	return entry
}

// AddSearchCost appends a flat-priced entry for a batch of search
// requests. costPerRequest <= 0 uses DefaultSearchCostUSD.
func (t *Tracker) AddSearchCost(numRequests int, costPerRequest float64) Entry {
	if costPerRequest <= 0 {
		costPerRequest = DefaultSearchCostUSD
	}
	entry := Entry{
		Stage:     domain.StageSearch,
		ModelID:   "search",
		CostUSD:   float64(numRequests) * costPerRequest,
		Timestamp: t.now().UTC(),
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
	return entry
}

// TotalCost returns the sum of all entries. Monotonically
// non-decreasing over the run.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total float64
	for _, e := range t.entries {
		total += e.CostUSD
	}
	return total
}

// GetBreakdown returns a copy of the entries with totals grouped by
// stage and by model. Every stage and model with at least one entry
// appears in its grouping.
func (t *Tracker) GetBreakdown() Breakdown {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := Breakdown{
		Entries: make([]Entry, len(t.entries)),
		ByStage: make(map[domain.Stage]float64),
		ByModel: make(map[string]float64),
	}
	copy(b.Entries, t.entries)
	for _, e := range t.entries {
		b.TotalUSD += e.CostUSD
		b.ByStage[e.Stage] += e.CostUSD
		b.ByModel[e.ModelID] += e.CostUSD
	}
	return b
}

// Reset clears all entries. Only used between independent runs.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
}
