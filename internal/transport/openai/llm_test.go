package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/domain"
	"github.com/profundo-ai/profundo/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterPipelineMetrics()
	os.Exit(m.Run())
}

func newTestClient(baseURL string) *Client {
	return NewClient(&Config{APIKey: "test-key", BaseURL: baseURL, Logger: zap.NewNop()})
}

func completionBody(content string) string {
	resp := map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestGenerateObject_DecodesSchemaOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody(`{"queries":[{"text":"a"},{"text":"b"}]}`))
	}))
	defer server.Close()

	var out struct {
		Queries []struct {
			Text string `json:"text"`
		} `json:"queries"`
	}
	usage, err := newTestClient(server.URL).GenerateObject(
		context.Background(), "test-model", "sys", "prompt",
		"queries", json.RawMessage(`{"type":"object"}`), &out,
	)
	if err != nil {
		t.Fatalf("GenerateObject: %v", err)
	}
	if len(out.Queries) != 2 {
		t.Errorf("queries = %d, want 2", len(out.Queries))
	}
	if usage.InputTokens != 12 || usage.OutputTokens != 7 {
		t.Errorf("usage = %+v, want 12/7", usage)
	}
}

func TestGenerateObject_BadJSONIsSchemaViolation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody("not json at all"))
	}))
	defer server.Close()

	var out map[string]any
	_, err := newTestClient(server.URL).GenerateObject(
		context.Background(), "test-model", "sys", "prompt",
		"thing", json.RawMessage(`{"type":"object"}`), &out,
	)
	if !errors.Is(err, domain.ErrSchemaViolation) {
		t.Errorf("err = %v, want ErrSchemaViolation", err)
	}
}

func TestGenerateObject_RateLimitIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
	}))
	defer server.Close()

	var out map[string]any
	_, err := newTestClient(server.URL).GenerateObject(
		context.Background(), "test-model", "sys", "prompt",
		"thing", json.RawMessage(`{}`), &out,
	)
	if !domain.IsTransient(err) {
		t.Errorf("err = %v, want transient", err)
	}
}

func TestGenerateObject_BadRequestIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad schema","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	var out map[string]any
	_, err := newTestClient(server.URL).GenerateObject(
		context.Background(), "test-model", "sys", "prompt",
		"thing", json.RawMessage(`{}`), &out,
	)
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsTransient(err) {
		t.Errorf("err = %v, should not be transient", err)
	}
}

func TestStreamText_DeliversDeltasInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Hello"}}]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":" world"}}]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	var got strings.Builder
	usage, err := newTestClient(server.URL).StreamText(
		context.Background(), "test-model", "sys", "prompt",
		func(delta string) error {
			got.WriteString(delta)
			return nil
		},
	)
	if err != nil {
		t.Fatalf("StreamText: %v", err)
	}
	if got.String() != "Hello world" {
		t.Errorf("text = %q, want %q", got.String(), "Hello world")
	}
	if usage.InputTokens != 5 || usage.OutputTokens != 2 {
		t.Errorf("usage = %+v, want 5/2", usage)
	}
}

func TestStreamText_OnDeltaErrorAbortsStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"x\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	wantErr := errors.New("client went away")
	_, err := newTestClient(server.URL).StreamText(
		context.Background(), "test-model", "sys", "prompt",
		func(string) error { return wantErr },
	)
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want onDelta error", err)
	}
}
