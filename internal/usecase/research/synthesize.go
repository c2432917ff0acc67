package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/profundo-ai/profundo/internal/domain"
)

type outlineOutput struct {
	Title    string `json:"title"`
	Sections []struct {
		Heading string `json:"heading"`
		Focus   string `json:"focus"`
	} `json:"sections"`
}

// synthesize writes the report section by section. The outline comes
// from one structured call (or the fixed academic template), then each
// section is streamed, with every delta forwarded to the event stream
// as it arrives. Citations are numbered by the kept-source order used
// in the prompts.
func (r *run) synthesize(ctx context.Context, sources []domain.EvaluatedSource) (string, []domain.Citation, error) {
	cfg := r.cfg.Synthesis

	outline, err := r.buildOutline(ctx, sources, cfg.MaxSections)
	if err != nil {
		return "", nil, err
	}
	if len(outline.Sections) == 0 {
		return "", nil, fmt.Errorf("%w: outline has no sections", domain.ErrSchemaViolation)
	}

	var report strings.Builder
	writeSection := func(text string) error {
		report.WriteString(text)
		return r.emit(domain.TextDeltaEvent{Delta: text})
	}

	if err := writeSection("# " + outline.Title + "\n\n"); err != nil {
		return "", nil, err
	}
	if r.academicEnabled() {
		if err := writeSection(r.academicFrontMatter()); err != nil {
			return "", nil, err
		}
	}

	var summaries []string
	for _, section := range outline.Sections {
		var sectionText strings.Builder
		err := r.callStream(ctx, domain.StageSynthesize,
			sectionSystem,
			sectionPrompt(r.req.Query, section.Heading, section.Focus, sources, summaries),
			func(delta string) error {
				sectionText.WriteString(delta)
				report.WriteString(delta)
				return r.emit(domain.TextDeltaEvent{Delta: delta})
			},
		)
		if err != nil {
			return "", nil, err
		}
		if err := writeSection("\n\n"); err != nil {
			return "", nil, err
		}
		summaries = append(summaries, summarizeSection(section.Heading, sectionText.String(), cfg.SectionSummarySize))
	}

	citations := make([]domain.Citation, len(sources))
	var refs strings.Builder
	refs.WriteString(r.referencesHeading() + "\n\n")
	for i, src := range sources {
		citations[i] = domain.Citation{Index: i + 1, URL: src.URL, Title: src.Title}
		fmt.Fprintf(&refs, "%d. %s — %s\n", i+1, src.Title, src.URL)
	}
	if err := writeSection(refs.String()); err != nil {
		return "", nil, err
	}

	return report.String(), citations, nil
}

// buildOutline asks the model for a section plan, except in academic
// mode where the template is fixed and only the title is generated.
func (r *run) buildOutline(ctx context.Context, sources []domain.EvaluatedSource, maxSections int) (*outlineOutput, error) {
	if r.academicEnabled() {
		return r.academicOutline(), nil
	}

	var out outlineOutput
	err := r.callObject(ctx, domain.StageSynthesize,
		outlineSystem,
		outlinePrompt(r.req.Query, sources, maxSections),
		"report_outline", outlineSchema, &out,
	)
	if err != nil {
		return nil, err
	}
	if len(out.Sections) > maxSections {
		out.Sections = out.Sections[:maxSections]
	}
	if out.Title == "" {
		out.Title = r.req.Query
	}
	return &out, nil
}

// summarizeSection keeps the tail of a section as carry-over context
// for later sections. The tail holds the conclusions.
func summarizeSection(heading, text string, max int) string {
	text = strings.TrimSpace(text)
	if max > 0 && len(text) > max {
		text = "…" + text[len(text)-max:]
	}
	return heading + ": " + text
}
