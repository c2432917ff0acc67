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

// Serper is the Serper (Google SERP) search provider.
type Serper struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSerper creates a Serper provider.
func NewSerper(apiKey, baseURL string) *Serper {
	return &Serper{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements Provider.
func (s *Serper) Name() string { return "serper" }

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	// TBS carries Google's time-bound search parameter, e.g. qdr:y.
	TBS string `json:"tbs,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search implements Provider.
func (s *Serper) Search(ctx context.Context, q Query) ([]Result, error) {
	payload, err := json.Marshal(serperRequest{
		Q:   q.Text,
		Num: q.MaxResults,
		TBS: recencyToTBS(q.RecencyDays),
	})
	if err != nil {
		return nil, fmt.Errorf("encode serper request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build serper request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.apiKey)

	resp, err := doWithRetry(ctx, s.client, req)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(s.Name(), "error").Inc()
		return nil, fmt.Errorf("%w: serper search: %v", domain.ErrTransientProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.SearchRequestsTotal.WithLabelValues(s.Name(), "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if transientStatus(resp.StatusCode) {
			return nil, fmt.Errorf("%w: serper status %d: %s", domain.ErrTransientProvider, resp.StatusCode, body)
		}
		return nil, fmt.Errorf("serper status %d: %s", resp.StatusCode, body)
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(s.Name(), "error").Inc()
		return nil, fmt.Errorf("decode serper response: %w", err)
	}

	metrics.SearchRequestsTotal.WithLabelValues(s.Name(), "success").Inc()
	results := make([]Result, 0, len(parsed.Organic))
	for _, r := range parsed.Organic {
		results = append(results, Result{URL: r.Link, Title: r.Title, Snippet: r.Snippet})
	}
	return results, nil
}

// recencyToTBS maps a recency window in days onto Google's closest
// qdr bucket.
func recencyToTBS(days int) string {
	switch {
	case days <= 0:
		return ""
	case days <= 1:
		return "qdr:d"
	case days <= 7:
		return "qdr:w"
	case days <= 31:
		return "qdr:m"
	default:
		return "qdr:y"
	}
}
