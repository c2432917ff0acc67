package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/profundo-ai/profundo/internal/domain"
	"github.com/profundo-ai/profundo/internal/metrics"
)

// Tavily is the Tavily search provider.
type Tavily struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewTavily creates a Tavily provider.
func NewTavily(apiKey, baseURL string) *Tavily {
	return &Tavily{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements Provider.
func (t *Tavily) Name() string { return "tavily" }

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results,omitempty"`
	Days        int    `json:"days,omitempty"`
	SearchDepth string `json:"search_depth,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search implements Provider.
func (t *Tavily) Search(ctx context.Context, q Query) ([]Result, error) {
	payload, err := json.Marshal(tavilyRequest{
		Query:       q.Text,
		MaxResults:  q.MaxResults,
		Days:        q.RecencyDays,
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, fmt.Errorf("encode tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := doWithRetry(ctx, t.client, req)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(t.Name(), "error").Inc()
		return nil, fmt.Errorf("%w: tavily search: %v", domain.ErrTransientProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.SearchRequestsTotal.WithLabelValues(t.Name(), "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if transientStatus(resp.StatusCode) {
			return nil, fmt.Errorf("%w: tavily status %d: %s", domain.ErrTransientProvider, resp.StatusCode, body)
		}
		return nil, fmt.Errorf("tavily status %d: %s", resp.StatusCode, body)
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(t.Name(), "error").Inc()
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	metrics.SearchRequestsTotal.WithLabelValues(t.Name(), "success").Inc()
	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, Result{URL: r.URL, Title: r.Title, Snippet: r.Content})
	}
	return results, nil
}

func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
