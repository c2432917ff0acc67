package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/domain"
	runrepo "github.com/profundo-ai/profundo/internal/repository/runs"
	"github.com/profundo-ai/profundo/internal/runs"
	"github.com/profundo-ai/profundo/internal/usecase/chat"
	"github.com/profundo-ai/profundo/internal/usecase/image"
	"github.com/profundo-ai/profundo/internal/usecase/research"
)

type fakeResearcher struct {
	runErr error
}

func (f *fakeResearcher) Run(
	_ context.Context, runID string, req domain.ResearchRequest,
	_ map[string]any, emit research.Emitter,
) (*domain.ResearchResponse, error) {
	if f.runErr != nil {
		_ = emit.Emit(domain.ErrorEvent{Message: f.runErr.Error()})
		return nil, f.runErr
	}
	_ = emit.Emit(domain.StageEvent{Stage: domain.StageDecompose, Status: domain.StageRunning, Progress: 0.05})
	_ = emit.Emit(domain.TextDeltaEvent{Delta: "relatório"})
	resp := domain.ResearchResponse{
		ReportText: "relatório",
		Metadata:   domain.RunMetadata{RunID: runID, Depth: req.Depth},
	}
	_ = emit.Emit(domain.DoneEvent{Response: resp})
	return &resp, nil
}

func (f *fakeResearcher) Estimate(pref domain.Preference, depth domain.Depth) (*research.CostEstimate, error) {
	if pref != "" && !domain.ValidPreference(pref) {
		return nil, domain.ErrValidation
	}
	return &research.CostEstimate{TotalUSD: 0.42}, nil
}

type fakeChat struct{}

func (fakeChat) Stream(_ context.Context, _ chat.Request, onDelta func(string) error) error {
	if err := onDelta("resposta "); err != nil {
		return err
	}
	return onDelta("curta")
}

type fakeImages struct{}

func (fakeImages) Generate(_ context.Context, req image.Request) (image.Result, error) {
	if req.Prompt == "" {
		return image.Result{}, domain.ErrValidation
	}
	return image.Result{URL: "https://img.example/1.png"}, nil
}

type fakeLibrary struct {
	saved   []runrepo.Record
	records map[string]runrepo.Record
	overlay map[string]any
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{records: map[string]runrepo.Record{}, overlay: map[string]any{}}
}

func (f *fakeLibrary) SaveRun(_ context.Context, req domain.ResearchRequest, resp domain.ResearchResponse) error {
	rec := runrepo.Record{ID: resp.Metadata.RunID, Query: req.Query, Response: resp}
	f.saved = append(f.saved, rec)
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeLibrary) GetRun(_ context.Context, id string) (runrepo.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return runrepo.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

func (f *fakeLibrary) ListRuns(context.Context) ([]runrepo.Record, error) {
	out := make([]runrepo.Record, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeLibrary) DeleteRun(_ context.Context, id string) error {
	delete(f.records, id)
	return nil
}

func (f *fakeLibrary) GetPreferences(context.Context) (map[string]any, error) {
	return f.overlay, nil
}

func (f *fakeLibrary) PutPreferences(_ context.Context, overlay map[string]any) error {
	if _, broken := overlay["__broken__"]; broken {
		return domain.ErrValidation
	}
	f.overlay = overlay
	return nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type testServer struct {
	router   chi.Router
	library  *fakeLibrary
	research *fakeResearcher
	pinger   *fakePinger
}

func newTestServer() *testServer {
	ts := &testServer{
		library:  newFakeLibrary(),
		research: &fakeResearcher{},
		pinger:   &fakePinger{},
	}
	srv := NewServer(
		ts.research, fakeChat{}, fakeImages{}, ts.library,
		runs.NewRegistry(zap.NewNop()), ts.pinger, zap.NewNop(),
	)
	ts.router = chi.NewRouter()
	srv.Routes(ts.router)
	return ts
}

func (ts *testServer) do(method, path string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func TestResearch_StreamsEventsAndSaves(t *testing.T) {
	ts := newTestServer()
	rr := ts.do("POST", "/api/research", `{"query":"impacto da IA no emprego","depth":"normal"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %s", rr.Header().Get("Content-Type"))
	}
	runID := rr.Header().Get("X-Run-Id")
	if runID == "" {
		t.Error("missing X-Run-Id header")
	}

	body := rr.Body.String()
	for _, want := range []string{`"type":"stage"`, `"type":"text-delta"`, `"type":"done"`, "data: [DONE]\n\n"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q:\n%s", want, body)
		}
	}
	if len(ts.library.saved) != 1 || ts.library.saved[0].ID != runID {
		t.Errorf("saved runs = %+v, want run %s", ts.library.saved, runID)
	}
}

func TestResearch_EmptyQueryRejectedBeforeStreaming(t *testing.T) {
	ts := newTestServer()
	rr := ts.do("POST", "/api/research", `{"query":"  "}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != codeValidationFailed {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestResearch_FailedRunStillTerminatesStream(t *testing.T) {
	ts := newTestServer()
	ts.research.runErr = errors.New("pipeline exploded")

	rr := ts.do("POST", "/api/research", `{"query":"q"}`)
	body := rr.Body.String()
	if !strings.Contains(body, `"type":"error"`) {
		t.Errorf("stream missing error event: %s", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("stream not terminated: %q", body)
	}
	if len(ts.library.saved) != 0 {
		t.Error("failed run must not be saved to the library")
	}
}

func TestEstimate(t *testing.T) {
	ts := newTestServer()
	rr := ts.do("GET", "/api/research/estimate?preference=economy&depth=quick", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var est research.CostEstimate
	if err := json.NewDecoder(rr.Body).Decode(&est); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if est.TotalUSD != 0.42 {
		t.Errorf("total = %f", est.TotalUSD)
	}

	if rr := ts.do("GET", "/api/research/estimate?preference=bogus", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bogus preference status = %d, want 400", rr.Code)
	}
}

func TestCancelRun_UnknownIs404(t *testing.T) {
	ts := newTestServer()
	rr := ts.do("DELETE", "/api/runs/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestLibraryEndpoints(t *testing.T) {
	ts := newTestServer()
	// Seed via a research run.
	ts.do("POST", "/api/research", `{"query":"q"}`)

	rr := ts.do("GET", "/api/library", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var listing struct {
		Runs []runrepo.Record `json:"runs"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listing.Runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(listing.Runs))
	}
	id := listing.Runs[0].ID

	if rr := ts.do("GET", "/api/library/"+id, ""); rr.Code != http.StatusOK {
		t.Errorf("get status = %d", rr.Code)
	}
	if rr := ts.do("DELETE", "/api/library/"+id, ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rr.Code)
	}
	if rr := ts.do("GET", "/api/library/"+id, ""); rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rr.Code)
	}
}

func TestPreferencesEndpoints(t *testing.T) {
	ts := newTestServer()

	if rr := ts.do("PUT", "/api/preferences", `{"search":{"resultsPerQuery":8}}`); rr.Code != http.StatusNoContent {
		t.Fatalf("put status = %d", rr.Code)
	}

	rr := ts.do("GET", "/api/preferences", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var overlay map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&overlay); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := overlay["search"]; !ok {
		t.Errorf("overlay = %v", overlay)
	}

	if rr := ts.do("PUT", "/api/preferences", `{"__broken__":true}`); rr.Code != http.StatusBadRequest {
		t.Errorf("broken overlay status = %d, want 400", rr.Code)
	}
	if rr := ts.do("PUT", "/api/preferences", `not json`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rr.Code)
	}
}

func TestChat_StreamsDeltas(t *testing.T) {
	ts := newTestServer()
	rr := ts.do("POST", "/api/chat", `{"messages":[{"role":"user","content":"oi"}]}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"delta":"resposta "`) || !strings.Contains(body, `"delta":"curta"`) {
		t.Errorf("stream = %q", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("stream not terminated: %q", body)
	}

	if rr := ts.do("POST", "/api/chat", `{"messages":[]}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty messages status = %d, want 400", rr.Code)
	}
}

func TestImages(t *testing.T) {
	ts := newTestServer()
	rr := ts.do("POST", "/api/images", `{"prompt":"capa"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var res image.Result
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.URL == "" {
		t.Error("missing image url")
	}

	if rr := ts.do("POST", "/api/images", `{"prompt":""}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty prompt status = %d, want 400", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer()
	if rr := ts.do("GET", "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("healthy status = %d", rr.Code)
	}

	ts.pinger.err = errors.New("connection refused")
	if rr := ts.do("GET", "/health", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d, want 503", rr.Code)
	}
}
