package library

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/domain"
	runrepo "github.com/profundo-ai/profundo/internal/repository/runs"
)

type mockRunStore struct {
	records map[string]runrepo.Record
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{records: map[string]runrepo.Record{}}
}

func (m *mockRunStore) Save(_ context.Context, rec runrepo.Record) error {
	m.records[rec.ID] = rec
	return nil
}

func (m *mockRunStore) Get(_ context.Context, id string) (runrepo.Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return runrepo.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

func (m *mockRunStore) List(_ context.Context) ([]runrepo.Record, error) {
	out := make([]runrepo.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}

func (m *mockRunStore) Delete(_ context.Context, id string) error {
	delete(m.records, id)
	return nil
}

type mockPrefStore struct {
	overlay map[string]any
}

func (m *mockPrefStore) Get(_ context.Context) (map[string]any, error) {
	if m.overlay == nil {
		return map[string]any{}, nil
	}
	return m.overlay, nil
}

func (m *mockPrefStore) Put(_ context.Context, prefs map[string]any) error {
	m.overlay = prefs
	return nil
}

func newService() (*Service, *mockRunStore, *mockPrefStore) {
	runs := newMockRunStore()
	prefs := &mockPrefStore{}
	return New(runs, prefs, zap.NewNop()), runs, prefs
}

func TestSaveAndGetRun(t *testing.T) {
	svc, store, _ := newService()

	resp := domain.ResearchResponse{
		ReportText: "relatório",
		Metadata:   domain.RunMetadata{RunID: "run-1", Depth: domain.DepthNormal},
	}
	err := svc.SaveRun(context.Background(), domain.ResearchRequest{Query: "impacto da IA"}, resp)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	rec, err := svc.GetRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.Query != "impacto da IA" || rec.Response.ReportText != "relatório" {
		t.Errorf("record = %+v", rec)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if len(store.records) != 1 {
		t.Errorf("stored records = %d", len(store.records))
	}
}

func TestGetRun_NotFound(t *testing.T) {
	svc, _, _ := newService()
	if _, err := svc.GetRun(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestPreferences_RoundTrip(t *testing.T) {
	svc, _, _ := newService()

	got, err := svc.GetPreferences(context.Background())
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("initial overlay = %v, want empty", got)
	}

	overlay := map[string]any{
		"search": map[string]any{"resultsPerQuery": 8},
	}
	if err := svc.PutPreferences(context.Background(), overlay); err != nil {
		t.Fatalf("PutPreferences: %v", err)
	}

	got, err = svc.GetPreferences(context.Background())
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	search, _ := got["search"].(map[string]any)
	if search["resultsPerQuery"] != 8 {
		t.Errorf("overlay = %v", got)
	}
}

func TestPutPreferences_RejectsBrokenOverlay(t *testing.T) {
	svc, _, _ := newService()

	// resultsPerQuery must decode as an integer.
	overlay := map[string]any{
		"search": map[string]any{"resultsPerQuery": "many"},
	}
	err := svc.PutPreferences(context.Background(), overlay)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}
