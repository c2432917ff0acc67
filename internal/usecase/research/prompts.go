package research

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/profundo-ai/profundo/internal/domain"
)

// All prompts instruct the model to answer in the language of the
// user's query, so Portuguese questions get Portuguese reports.
const languageRule = "Always respond in the same language as the research question."

const decomposeSystem = "You are a research planner. You break a research question " +
	"into focused, independently searchable sub-queries that together cover the topic. " +
	languageRule

var decomposeSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "queries": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "text": {"type": "string"},
          "justification": {"type": "string"},
          "language": {"type": "string"}
        },
        "required": ["text", "justification", "language"],
        "additionalProperties": false
      }
    }
  },
  "required": ["queries"],
  "additionalProperties": false
}`)

func decomposePrompt(req domain.ResearchRequest, minQ, maxQ, target int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n\n", req.Query)
	if req.DomainPreset != "" {
		fmt.Fprintf(&b, "Domain focus: %s\n\n", req.DomainPreset)
	}
	for _, att := range req.Attachments {
		fmt.Fprintf(&b, "Attached document %q:\n%s\n\n", att.Name, truncate(att.Text, 4000))
	}
	fmt.Fprintf(&b,
		"Produce between %d and %d sub-queries (aim for %d). "+
			"Each sub-query must be answerable by a web search and must not duplicate another. "+
			"Set language to the BCP-47 tag of the sub-query text.",
		minQ, maxQ, target)
	return b.String()
}

const evaluateSystem = "You are a research source evaluator. You score search results " +
	"for how well they answer a research question. Scores are floats in [0,1]. " +
	"relevance: how directly the source addresses the question. " +
	"recency: how current the information appears. " +
	"authority: how credible the publisher is."

var evaluateSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "scores": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "index": {"type": "integer"},
          "relevance": {"type": "number"},
          "recency": {"type": "number"},
          "authority": {"type": "number"}
        },
        "required": ["index", "relevance", "recency", "authority"],
        "additionalProperties": false
      }
    }
  },
  "required": ["scores"],
  "additionalProperties": false
}`)

func evaluatePrompt(query string, results []domain.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n\nScore every source below. Use the listed index.\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n%s\n%s\n\n", i, r.Title, r.URL, truncate(r.Snippet, 500))
	}
	return b.String()
}

const outlineSystem = "You are a research report editor. You design a section outline " +
	"for a deep research report grounded in the provided sources. " + languageRule

var outlineSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "heading": {"type": "string"},
          "focus": {"type": "string"}
        },
        "required": ["heading", "focus"],
        "additionalProperties": false
      }
    }
  },
  "required": ["title", "sections"],
  "additionalProperties": false
}`)

func outlinePrompt(query string, sources []domain.EvaluatedSource, maxSections int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n\nAvailable sources:\n", query)
	writeSourceList(&b, sources)
	fmt.Fprintf(&b, "\nDesign at most %d sections. Do not include a references section; it is appended automatically.", maxSections)
	return b.String()
}

const sectionSystem = "You are a research report writer. You write one section at a time, " +
	"in Markdown, grounded strictly in the provided source material. " +
	"Cite sources inline as [n] using the numbered source list. " +
	"Never invent facts that are not in the sources. " + languageRule

func sectionPrompt(query, heading, focus string, sources []domain.EvaluatedSource, priorSummaries []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n\n", query)
	if len(priorSummaries) > 0 {
		b.WriteString("Summaries of the sections already written:\n")
		for _, s := range priorSummaries {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}
	b.WriteString("Numbered sources:\n")
	writeSourceContent(&b, sources)
	fmt.Fprintf(&b, "\nWrite the section %q. Section focus: %s\n"+
		"Start with the Markdown heading. Do not repeat material covered by earlier sections.",
		heading, focus)
	return b.String()
}

const researchLoopSystem = "You are a research quality reviewer. You identify the most " +
	"important gaps and open questions a report leaves unanswered. " + languageRule

var researchLoopSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "gaps": {
      "type": "array",
      "items": {"type": "string"}
    }
  },
  "required": ["gaps"],
  "additionalProperties": false
}`)

func researchLoopPrompt(query, report string) string {
	return fmt.Sprintf(
		"Research question: %s\n\nReport:\n%s\n\nList the most important gaps, each as one sentence.",
		query, truncate(report, 20000))
}

const devilsAdvocateSystem = "You are a critical reviewer playing devil's advocate. You " +
	"challenge a research report's strongest claims with counter-arguments grounded in the " +
	"report's own sources or in widely accepted knowledge. " + languageRule

func devilsAdvocatePrompt(query, report string) string {
	return fmt.Sprintf(
		"Research question: %s\n\nReport:\n%s\n\n"+
			"Write a short Markdown section challenging the report's main claims.",
		query, truncate(report, 20000))
}

func writeSourceList(b *strings.Builder, sources []domain.EvaluatedSource) {
	for i, s := range sources {
		fmt.Fprintf(b, "[%d] %s (%s)\n", i+1, s.Title, s.URL)
	}
}

func writeSourceContent(b *strings.Builder, sources []domain.EvaluatedSource) {
	for i, s := range sources {
		content := s.Content
		if content == "" {
			content = s.Snippet
		}
		fmt.Fprintf(b, "[%d] %s (%s)\n%s\n\n", i+1, s.Title, s.URL, truncate(content, 6000))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
