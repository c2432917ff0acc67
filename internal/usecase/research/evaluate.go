package research

import (
	"context"
	"fmt"
	"sort"

	"github.com/profundo-ai/profundo/internal/domain"
)

type evaluateOutput struct {
	Scores []struct {
		Index     int     `json:"index"`
		Relevance float64 `json:"relevance"`
		Recency   float64 `json:"recency"`
		Authority float64 `json:"authority"`
	} `json:"scores"`
}

// evaluate scores every search result in one structured call, then
// applies the relevance threshold and the weighted top-N cut. Every
// input result comes back as an EvaluatedSource; nothing is silently
// dropped, the cut only clears the Kept flag.
func (r *run) evaluate(ctx context.Context, results []domain.SearchResult) ([]domain.EvaluatedSource, error) {
	cfg := r.cfg.Evaluation

	var out evaluateOutput
	err := r.callObject(ctx, domain.StageEvaluate,
		evaluateSystem,
		evaluatePrompt(r.req.Query, results),
		"source_scores", evaluateSchema, &out,
	)
	if err != nil {
		return nil, err
	}

	scored := make(map[int][3]float64, len(out.Scores))
	for _, s := range out.Scores {
		if s.Index < 0 || s.Index >= len(results) {
			return nil, fmt.Errorf("%w: score index %d out of range", domain.ErrSchemaViolation, s.Index)
		}
		scored[s.Index] = [3]float64{
			clamp01(s.Relevance), clamp01(s.Recency), clamp01(s.Authority),
		}
	}

	evaluated := make([]domain.EvaluatedSource, len(results))
	for i, res := range results {
		sc := scored[i] // unscored sources default to zero and fail the threshold
		evaluated[i] = domain.EvaluatedSource{
			SearchResult:   res,
			RelevanceScore: sc[0],
			RecencyScore:   sc[1],
			AuthorityScore: sc[2],
		}
	}

	// Candidates pass the relevance threshold; the top-N cut then
	// orders by weighted composite. Sort is stable so equal composites
	// keep their search order.
	candidates := make([]int, 0, len(evaluated))
	for i, src := range evaluated {
		if src.RelevanceScore >= cfg.RelevanceThreshold {
			candidates = append(candidates, i)
		}
	}
	w := cfg.Weights
	composite := func(s domain.EvaluatedSource) float64 {
		return w.Relevance*s.RelevanceScore + w.Recency*s.RecencyScore + w.Authority*s.AuthorityScore
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return composite(evaluated[candidates[a]]) > composite(evaluated[candidates[b]])
	})

	limit := cfg.MaxSources
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	for _, idx := range candidates[:limit] {
		evaluated[idx].Kept = true
	}
	return evaluated, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
