package research

import (
	"fmt"
	"strings"
)

// Academic mode targets Brazilian undergraduate theses (TCC), so the
// section template follows the ABNT monograph structure instead of a
// model-generated outline.
var academicSections = []struct {
	Heading string
	Focus   string
}{
	{"Introdução", "contextualize the topic, state the research problem, justify its relevance, and present the objectives"},
	{"Revisão de Literatura", "survey what the sources establish about the topic, organized by theme, contrasting viewpoints where they diverge"},
	{"Metodologia", "describe the research approach as a systematic review of the collected sources, including selection criteria"},
	{"Resultados e Discussão", "present the findings the sources support and discuss their implications, tensions, and limitations"},
	{"Considerações Finais", "revisit the objectives, synthesize the main conclusions, and point to future work"},
}

func (r *run) academicEnabled() bool {
	return r.req.Academic != nil && r.req.Academic.Enabled
}

func (r *run) academicOutline() *outlineOutput {
	out := &outlineOutput{Title: r.req.Academic.Title}
	if out.Title == "" {
		out.Title = r.req.Query
	}
	for _, s := range academicSections {
		out.Sections = append(out.Sections, struct {
			Heading string `json:"heading"`
			Focus   string `json:"focus"`
		}{Heading: s.Heading, Focus: s.Focus})
	}
	return out
}

// academicFrontMatter renders the identification block that precedes
// the introduction.
func (r *run) academicFrontMatter() string {
	ac := r.req.Academic
	var b strings.Builder
	if ac.Author != "" {
		fmt.Fprintf(&b, "**Autor:** %s\n\n", ac.Author)
	}
	if ac.Institution != "" {
		fmt.Fprintf(&b, "**Instituição:** %s\n\n", ac.Institution)
	}
	return b.String()
}

func (r *run) referencesHeading() string {
	if r.academicEnabled() {
		return "## Referências"
	}
	return "## Sources"
}
