package research

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/profundo-ai/profundo/internal/domain"
)

type decomposeOutput struct {
	Queries []struct {
		Text          string `json:"text"`
		Justification string `json:"justification"`
		Language      string `json:"language"`
	} `json:"queries"`
}

// decompose breaks the research question into sub-queries. The model
// output must land inside the configured [min,max] window; anything
// else is a schema violation and fails the run.
func (r *run) decompose(ctx context.Context) ([]domain.SubQuery, error) {
	cfg := r.cfg.Decomposition

	var out decomposeOutput
	err := r.callObject(ctx, domain.StageDecompose,
		decomposeSystem,
		decomposePrompt(r.req, cfg.MinQueries, cfg.MaxQueries, cfg.TargetQueries),
		"research_subqueries", decomposeSchema, &out,
	)
	if err != nil {
		return nil, err
	}

	n := len(out.Queries)
	if n < cfg.MinQueries || n > cfg.MaxQueries {
		return nil, fmt.Errorf("%w: got %d sub-queries, want between %d and %d",
			domain.ErrSchemaViolation, n, cfg.MinQueries, cfg.MaxQueries)
	}

	queries := make([]domain.SubQuery, 0, n)
	for _, q := range out.Queries {
		if q.Text == "" {
			return nil, fmt.Errorf("%w: empty sub-query text", domain.ErrSchemaViolation)
		}
		queries = append(queries, domain.SubQuery{
			ID:            uuid.NewString(),
			Text:          q.Text,
			Justification: q.Justification,
			Language:      q.Language,
			Status:        domain.SubQueryPending,
		})
	}
	return queries, nil
}
