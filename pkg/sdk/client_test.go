package profundo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sseHandler(t *testing.T, frames []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func TestResearch_StreamsEventsAndReturnsResponse(t *testing.T) {
	frames := []string{
		`{"type":"stage","stage":"decomposing","status":"running","progress":0.05}`,
		`{"type":"queries","queries":[{"id":"q1","text":"sub","status":"pending"}]}`,
		`{"type":"source","source":{"url":"https://a.example","title":"A","subQueryId":"q1","kept":true}}`,
		`{"type":"text-delta","delta":"# Relatório"}`,
		`{"type":"done","response":{"reportText":"# Relatório","citations":[{"index":1,"url":"https://a.example","title":"A"}],"totalCostUSD":0.12}}`,
	}
	srv := httptest.NewServer(sseHandler(t, frames))
	defer srv.Close()

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var kinds []EventKind
	resp, err := client.Research(context.Background(), ResearchRequest{Query: "q"}, func(ev Event) error {
		kinds = append(kinds, ev.Kind())
		return nil
	})
	if err != nil {
		t.Fatalf("Research: %v", err)
	}

	wantKinds := []EventKind{EventStage, EventQueries, EventSource, EventTextDelta, EventDone}
	if len(kinds) != len(wantKinds) {
		t.Fatalf("kinds = %v, want %v", kinds, wantKinds)
	}
	for i, k := range wantKinds {
		if kinds[i] != k {
			t.Errorf("event %d = %s, want %s", i, kinds[i], k)
		}
	}

	if resp.ReportText != "# Relatório" {
		t.Errorf("report = %q", resp.ReportText)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].URL != "https://a.example" {
		t.Errorf("citations = %+v", resp.Citations)
	}
	if resp.TotalCost != 0.12 {
		t.Errorf("total cost = %v", resp.TotalCost)
	}
}

func TestResearch_FatalErrorEventFailsRun(t *testing.T) {
	frames := []string{
		`{"type":"stage","stage":"evaluating","status":"failed","progress":0.35}`,
		`{"type":"error","message":"no sources survived evaluation","recoverable":false}`,
	}
	srv := httptest.NewServer(sseHandler(t, frames))
	defer srv.Close()

	client, _ := New(srv.URL)
	_, err := client.Research(context.Background(), ResearchRequest{Query: "q"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "no sources survived") {
		t.Errorf("err = %v", err)
	}
}

func TestResearch_RecoverableErrorDoesNotFailRun(t *testing.T) {
	frames := []string{
		`{"type":"error","message":"fetch failed: https://b.example","recoverable":true}`,
		`{"type":"done","response":{"reportText":"ok"}}`,
	}
	srv := httptest.NewServer(sseHandler(t, frames))
	defer srv.Close()

	client, _ := New(srv.URL)
	resp, err := client.Research(context.Background(), ResearchRequest{Query: "q"}, nil)
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if resp.ReportText != "ok" {
		t.Errorf("report = %q", resp.ReportText)
	}
}

func TestResearch_MissingDoneEventFails(t *testing.T) {
	frames := []string{
		`{"type":"text-delta","delta":"partial"}`,
	}
	srv := httptest.NewServer(sseHandler(t, frames))
	defer srv.Close()

	client, _ := New(srv.URL)
	if _, err := client.Research(context.Background(), ResearchRequest{Query: "q"}, nil); err == nil {
		t.Fatal("expected error for stream without done event")
	}
}

func TestResearch_HandlerErrorAbortsStream(t *testing.T) {
	frames := []string{
		`{"type":"text-delta","delta":"a"}`,
		`{"type":"text-delta","delta":"b"}`,
		`{"type":"done","response":{"reportText":"ab"}}`,
	}
	srv := httptest.NewServer(sseHandler(t, frames))
	defer srv.Close()

	client, _ := New(srv.URL)
	seen := 0
	_, err := client.Research(context.Background(), ResearchRequest{Query: "q"}, func(Event) error {
		seen++
		return errors.New("stop")
	})
	if err == nil || !strings.Contains(err.Error(), "stop") {
		t.Fatalf("err = %v", err)
	}
	if seen != 1 {
		t.Errorf("handler called %d times, want 1", seen)
	}
}

func TestResearch_ValidationErrorBeforeStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":"validation_failed","message":"query is required"}`)
	}))
	defer srv.Close()

	client, _ := New(srv.URL)
	_, err := client.Research(context.Background(), ResearchRequest{}, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("expected *APIError")
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d", apiErr.Status)
	}
}

func TestClient_SendsAuthAndAgentHeaders(t *testing.T) {
	var gotAuth, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	client, _ := New(srv.URL, WithAPIKey("secret"))
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotUA != defaultUserAgent {
		t.Errorf("user agent = %q", gotUA)
	}
}

func TestEstimate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("depth"); got != "deep" {
			t.Errorf("depth query = %q", got)
		}
		json.NewEncoder(w).Encode(Estimate{
			PerStage: map[Stage]ModelSelection{
				StageSynthesize: {ModelID: "gpt-5", EstimatedCostUSD: 0.30},
			},
			TotalUSD: 0.42,
		})
	}))
	defer srv.Close()

	client, _ := New(srv.URL)
	est, err := client.Estimate(context.Background(), PreferencePremium, DepthDeep)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.TotalUSD != 0.42 {
		t.Errorf("total = %v", est.TotalUSD)
	}
	if est.PerStage[StageSynthesize].ModelID != "gpt-5" {
		t.Errorf("per stage = %+v", est.PerStage)
	}
}

func TestCancelRun_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":"not_found","message":"run missing: no active run"}`)
	}))
	defer srv.Close()

	client, _ := New(srv.URL)
	if err := client.CancelRun(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLibrary_RoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/library", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"runs":[{"id":"r1","query":"q1"},{"id":"r2","query":"q2"}]}`)
	})
	mux.HandleFunc("GET /api/library/r1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"r1","query":"q1","response":{"reportText":"texto"}}`)
	})
	mux.HandleFunc("DELETE /api/library/r1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, _ := New(srv.URL)
	ctx := context.Background()

	runs, err := client.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r1" {
		t.Errorf("runs = %+v", runs)
	}

	rec, err := client.Run(ctx, "r1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Response.ReportText != "texto" {
		t.Errorf("record = %+v", rec)
	}

	if err := client.DeleteRun(ctx, "r1"); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
}

func TestPreferences_RoundTrip(t *testing.T) {
	var stored map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/preferences", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&stored); err != nil {
			t.Errorf("decode overlay: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/preferences", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(stored)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, _ := New(srv.URL)
	ctx := context.Background()

	overlay := map[string]any{"search": map[string]any{"resultsPerQuery": float64(5)}}
	if err := client.PutPreferences(ctx, overlay); err != nil {
		t.Fatalf("PutPreferences: %v", err)
	}

	got, err := client.Preferences(ctx)
	if err != nil {
		t.Fatalf("Preferences: %v", err)
	}
	if _, ok := got["search"]; !ok {
		t.Errorf("prefs = %+v", got)
	}
}

func TestChat_AssemblesDeltas(t *testing.T) {
	frames := []string{
		`{"type":"text-delta","delta":"a resposta "}`,
		`{"type":"text-delta","delta":"completa"}`,
	}
	srv := httptest.NewServer(sseHandler(t, frames))
	defer srv.Close()

	client, _ := New(srv.URL)
	var sb strings.Builder
	err := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "e depois?"}},
	}, func(delta string) error {
		sb.WriteString(delta)
		return nil
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if sb.String() != "a resposta completa" {
		t.Errorf("answer = %q", sb.String())
	}
}

func TestChat_ErrorEventFails(t *testing.T) {
	frames := []string{
		`{"type":"error","message":"model unavailable","recoverable":false}`,
	}
	srv := httptest.NewServer(sseHandler(t, frames))
	defer srv.Close()

	client, _ := New(srv.URL)
	err := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "?"}},
	}, func(string) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("err = %v", err)
	}
}

func TestDecodeEvent_UnknownTypeFails(t *testing.T) {
	if _, err := decodeEvent([]byte(`{"type":"mystery"}`)); err == nil {
		t.Error("expected error for unknown event type")
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty base URL")
	}
}
