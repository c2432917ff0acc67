package research

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/domain"
	"github.com/profundo-ai/profundo/internal/transport/websearch"
)

// searchAll fans one web search out per sub-query under the configured
// concurrency cap. Individual sub-query failures are tolerated; the
// stage fails only when every search failed. Results are deduplicated
// by URL, first hit wins.
func (r *run) searchAll(ctx context.Context, subQueries []domain.SubQuery) ([]domain.SearchResult, error) {
	cfg := r.cfg.Search
	provider, err := r.svc.searcher(cfg.Provider)
	if err != nil {
		return nil, err
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	type batch struct {
		subQueryID string
		results    []websearch.Result
		err        error
	}
	batches := make([]batch, len(subQueries))

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	for i := range subQueries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			sq := subQueries[i]
			results, err := provider.Search(ctx, websearch.Query{
				Text:        sq.Text,
				MaxResults:  cfg.ResultsPerQuery,
				RecencyDays: cfg.RecencyDays,
			})
			batches[i] = batch{subQueryID: sq.ID, results: results, err: err}
		}(i)
	}
	wg.Wait()

	r.tracker.AddSearchCost(len(subQueries), cfg.CostPerRequest)

	seen := make(map[string]bool)
	var all []domain.SearchResult
	failures := 0
	for i, b := range batches {
		if b.err != nil {
			failures++
			subQueries[i].Status = domain.SubQueryFailed
			r.logger.Warn("sub-query search failed",
				zap.String("sub_query", subQueries[i].Text),
				zap.Error(b.err),
			)
			continue
		}
		subQueries[i].Status = domain.SubQueryCompleted
		for _, res := range b.results {
			if res.URL == "" || seen[res.URL] {
				continue
			}
			seen[res.URL] = true
			all = append(all, domain.SearchResult{
				URL:        res.URL,
				Title:      res.Title,
				Snippet:    res.Snippet,
				SubQueryID: b.subQueryID,
			})
		}
	}

	if failures == len(subQueries) {
		return nil, fmt.Errorf("%w: all %d sub-query searches failed", domain.ErrFatalPipeline, failures)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: searches returned no results", domain.ErrFatalPipeline)
	}

	r.logger.Info("search stage collected results",
		zap.String("provider", provider.Name()),
		zap.Int("sub_queries", len(subQueries)),
		zap.Int("failed_sub_queries", failures),
		zap.Int("unique_results", len(all)),
	)
	return all, nil
}
