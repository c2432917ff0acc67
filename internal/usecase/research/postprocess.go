package research

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/domain"
)

type researchLoopOutput struct {
	Gaps []string `json:"gaps"`
}

// postProcess runs the optional additive passes over the finished
// report. Each pass failing is degraded, not fatal: a recoverable
// error event goes out and the pass is skipped.
func (r *run) postProcess(ctx context.Context, report string, sources []domain.EvaluatedSource) (string, error) {
	cfg := r.cfg.PostProcess

	if cfg.ResearchLoop {
		amended, err := r.researchLoopPass(ctx, report)
		if err != nil {
			if skipErr := r.skipPass(ctx, "research loop", err); skipErr != nil {
				return "", skipErr
			}
		} else {
			report = amended
		}
	}

	if cfg.DevilsAdvocate {
		amended, err := r.devilsAdvocatePass(ctx, report)
		if err != nil {
			if skipErr := r.skipPass(ctx, "devil's advocate", err); skipErr != nil {
				return "", skipErr
			}
		} else {
			report = amended
		}
	}

	return report, nil
}

// skipPass reports a degraded pass. Cancellation is not degradation;
// it propagates so the run stops.
func (r *run) skipPass(ctx context.Context, pass string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.logger.Warn("post-processing pass skipped",
		zap.String("pass", pass),
		zap.Error(err),
	)
	return r.emit(domain.ErrorEvent{
		Message:     fmt.Sprintf("%s pass skipped: %v", pass, err),
		Recoverable: true,
	})
}

// researchLoopPass asks the model where the report falls short and
// appends the gaps as a limitations section.
func (r *run) researchLoopPass(ctx context.Context, report string) (string, error) {
	var out researchLoopOutput
	err := r.callObject(ctx, domain.StagePostProcess,
		researchLoopSystem,
		researchLoopPrompt(r.req.Query, report),
		"research_gaps", researchLoopSchema, &out,
	)
	if err != nil {
		return "", err
	}
	if len(out.Gaps) == 0 {
		return report, nil
	}

	var b strings.Builder
	b.WriteString("\n\n## Limitações e Lacunas\n\n")
	for _, gap := range out.Gaps {
		fmt.Fprintf(&b, "- %s\n", gap)
	}
	if err := r.emit(domain.TextDeltaEvent{Delta: b.String()}); err != nil {
		return "", err
	}
	return report + b.String(), nil
}

// devilsAdvocatePass streams a counter-argument section onto the
// report.
func (r *run) devilsAdvocatePass(ctx context.Context, report string) (string, error) {
	var section strings.Builder
	section.WriteString("\n\n")

	err := r.callStream(ctx, domain.StagePostProcess,
		devilsAdvocateSystem,
		devilsAdvocatePrompt(r.req.Query, report),
		func(delta string) error {
			section.WriteString(delta)
			return r.emit(domain.TextDeltaEvent{Delta: delta})
		},
	)
	if err != nil {
		return "", err
	}
	return report + section.String(), nil
}
