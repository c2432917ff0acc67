package costs

import (
	"math"
	"sync"
	"testing"

	"github.com/profundo-ai/profundo/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAddEntry_UsesPricingTable(t *testing.T) {
	tr := NewTracker()

	e := tr.AddEntry(domain.StageSynthesize, "gpt-4.1", 1_000_000, 500_000)
	// 1M input @ $2 + 0.5M output @ $8.
	if !almostEqual(e.CostUSD, 6.00) {
		t.Errorf("cost = %v, want 6.00", e.CostUSD)
	}
	if !almostEqual(tr.TotalCost(), 6.00) {
		t.Errorf("total = %v, want 6.00", tr.TotalCost())
	}
}

func TestAddEntry_UnknownModelCostsZero(t *testing.T) {
	tr := NewTracker()
	e := tr.AddEntry(domain.StageDecompose, "mystery-model", 1000, 1000)
	if e.CostUSD != 0 {
		t.Errorf("unknown model cost = %v, want 0", e.CostUSD)
	}
}

func TestAddSearchCost_FlatPerRequest(t *testing.T) {
	tr := NewTracker()

	e := tr.AddSearchCost(3, 0)
	if e.Stage != domain.StageSearch {
		t.Errorf("stage = %s, want %s", e.Stage, domain.StageSearch)
	}
	if !almostEqual(e.CostUSD, 0.015) {
		t.Errorf("cost = %v, want 0.015", e.CostUSD)
	}

	tr.AddSearchCost(2, 0.01)
	if !almostEqual(tr.TotalCost(), 0.035) {
		t.Errorf("total = %v, want 0.035", tr.TotalCost())
	}
}

func TestGetBreakdown_CopiesAndGroups(t *testing.T) {
	tr := NewTracker().WithPricing(func(_ string, in, out int) float64 {
		return float64(in+out) / 1000
	})

	tr.AddEntry(domain.StageDecompose, "model-a", 500, 500)
	tr.AddEntry(domain.StageSynthesize, "model-a", 1000, 0)
	tr.AddEntry(domain.StageSynthesize, "model-b", 2000, 0)

	b := tr.GetBreakdown()
	if len(b.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(b.Entries))
	}
	if !almostEqual(b.TotalUSD, 4.0) {
		t.Errorf("total = %v, want 4.0", b.TotalUSD)
	}
	if !almostEqual(b.ByStage[domain.StageSynthesize], 3.0) {
		t.Errorf("synthesize group = %v, want 3.0", b.ByStage[domain.StageSynthesize])
	}
	if !almostEqual(b.ByModel["model-a"], 2.0) {
		t.Errorf("model-a group = %v, want 2.0", b.ByModel["model-a"])
	}

	// The returned slice is a copy, not the live list.
	b.Entries[0].CostUSD = 999
	if tr.GetBreakdown().Entries[0].CostUSD == 999 {
		t.Error("breakdown entries alias the live list")
	}
}

func TestReset_ClearsEverything(t *testing.T) {
	tr := NewTracker()
	tr.AddEntry(domain.StageDecompose, "gpt-4.1", 100, 100)
	tr.AddSearchCost(5, 0)

	tr.Reset()

	if tr.TotalCost() != 0 {
		t.Errorf("total after reset = %v, want 0", tr.TotalCost())
	}
	if n := len(tr.GetBreakdown().Entries); n != 0 {
		t.Errorf("entries after reset = %d, want 0", n)
	}
}

func TestTracker_ConcurrentAppends(t *testing.T) {
	tr := NewTracker().WithPricing(func(string, int, int) float64 { return 0.01 })

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				tr.AddEntry(domain.StageSearch, "m", 1, 1)
			}
		}()
	}
	wg.Wait()

	b := tr.GetBreakdown()
	if len(b.Entries) != workers*perWorker {
		t.Errorf("entries = %d, want %d (no entry dropped or doubled)", len(b.Entries), workers*perWorker)
	}
	if !almostEqual(b.TotalUSD, float64(workers*perWorker)*0.01) {
		t.Errorf("total = %v, want %v", b.TotalUSD, float64(workers*perWorker)*0.01)
	}
}
