package runconfig

import (
	"encoding/json"
	"fmt"

	"github.com/profundo-ai/profundo/internal/domain"
)

// Effective is the merged configuration tree decoded into typed form.
// It is read-only for the duration of one pipeline run.
type Effective struct {
	Decomposition DecompositionConfig `json:"decomposition"`
	Search        SearchConfig        `json:"search"`
	Evaluation    EvaluationConfig    `json:"evaluation"`
	Extraction    ExtractionConfig    `json:"extraction"`
	Synthesis     SynthesisConfig     `json:"synthesis"`
	PostProcess   PostProcessConfig   `json:"postProcess"`
	Limits        LimitsConfig        `json:"limits"`

	raw map[string]any
}

// DecompositionConfig bounds the sub-query set.
type DecompositionConfig struct {
	MinQueries    int `json:"minQueries"`
	MaxQueries    int `json:"maxQueries"`
	TargetQueries int `json:"targetQueries"`
}

// SearchConfig selects and tunes the web-search provider.
type SearchConfig struct {
	Provider         string  `json:"provider"` // tavily, serper
	ResultsPerQuery  int     `json:"resultsPerQuery"`
	RecencyDays      int     `json:"recencyDays"`
	Concurrency      int     `json:"concurrency"`
	CostPerRequest   float64 `json:"costPerRequestUSD"`
}

// EvaluationConfig controls source scoring and the keep cut.
type EvaluationConfig struct {
	RelevanceThreshold float64           `json:"relevanceThreshold"`
	MaxSources         int               `json:"maxSources"`
	Weights            EvaluationWeights `json:"weights"`
}

// EvaluationWeights combine the three scores into the composite used
// for the top-N ordering.
type EvaluationWeights struct {
	Relevance float64 `json:"relevance"`
	Recency   float64 `json:"recency"`
	Authority float64 `json:"authority"`
}

// ExtractionConfig controls per-source content fetching.
type ExtractionConfig struct {
	Concurrency    int `json:"concurrency"`
	TimeoutSec     int `json:"timeoutSec"`
	MaxContentSize int `json:"maxContentSize"`
}

// SynthesisConfig controls report generation.
type SynthesisConfig struct {
	MaxSections        int `json:"maxSections"`
	SectionSummarySize int `json:"sectionSummarySize"`
}

// PostProcessConfig enables optional additive passes.
type PostProcessConfig struct {
	ResearchLoop   bool `json:"researchLoop"`
	DevilsAdvocate bool `json:"devilsAdvocate"`
}

// LimitsConfig bounds the run as a whole.
type LimitsConfig struct {
	MaxRunSec     int `json:"maxRunSec"`
	StageCallSec  int `json:"stageCallSec"`
}

// Defaults returns the system default configuration tree.
func Defaults() map[string]any {
	return map[string]any{
		"decomposition": map[string]any{
			"minQueries":    3,
			"maxQueries":    8,
			"targetQueries": 5,
		},
		"search": map[string]any{
			"provider":          "tavily",
			"resultsPerQuery":   5,
			"recencyDays":       365,
			"concurrency":       3,
			"costPerRequestUSD": 0.005,
		},
		"evaluation": map[string]any{
			"relevanceThreshold": 0.45,
			"maxSources":         12,
			"weights": map[string]any{
				"relevance": 0.5,
				"recency":   0.2,
				"authority": 0.3,
			},
		},
		"extraction": map[string]any{
			"concurrency":    4,
			"timeoutSec":     20,
			"maxContentSize": 24000,
		},
		"synthesis": map[string]any{
			"maxSections":        6,
			"sectionSummarySize": 600,
		},
		"postProcess": map[string]any{
			"researchLoop":   false,
			"devilsAdvocate": false,
		},
		"limits": map[string]any{
			"maxRunSec":    900,
			"stageCallSec": 120,
		},
	}
}

// depthProfiles overlay the defaults per depth preset before user
// settings and per-run overrides are applied.
var depthProfiles = map[domain.Depth]map[string]any{
	domain.DepthQuick: {
		"decomposition": map[string]any{"minQueries": 2, "maxQueries": 4, "targetQueries": 3},
		"search":        map[string]any{"resultsPerQuery": 3},
		"evaluation":    map[string]any{"maxSources": 6},
		"synthesis":     map[string]any{"maxSections": 4},
		"limits":        map[string]any{"maxRunSec": 300},
	},
	domain.DepthNormal: {},
	domain.DepthDeep: {
		"decomposition": map[string]any{"minQueries": 5, "maxQueries": 10, "targetQueries": 7},
		"search":        map[string]any{"resultsPerQuery": 7},
		"evaluation":    map[string]any{"maxSources": 18},
		"synthesis":     map[string]any{"maxSections": 8},
		"postProcess":   map[string]any{"researchLoop": true},
		"limits":        map[string]any{"maxRunSec": 1800},
	},
	domain.DepthExhaustive: {
		"decomposition": map[string]any{"minQueries": 6, "maxQueries": 14, "targetQueries": 10},
		"search":        map[string]any{"resultsPerQuery": 8},
		"evaluation":    map[string]any{"maxSources": 25},
		"synthesis":     map[string]any{"maxSections": 10},
		"postProcess":   map[string]any{"researchLoop": true, "devilsAdvocate": true},
		"limits":        map[string]any{"maxRunSec": 3600},
	},
}

// Resolve deep-merges defaults, the depth profile, stored user
// settings, and per-run overrides (in that order) and decodes the
// result into typed form.
func Resolve(depth domain.Depth, userSettings, overrides map[string]any) (*Effective, error) {
	merged := DeepMerge(Defaults(), depthProfiles[depth], userSettings, overrides)

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged config: %w", err)
	}
	var eff Effective
	if err := json.Unmarshal(data, &eff); err != nil {
		return nil, fmt.Errorf("%w: decode merged config: %v", domain.ErrValidation, err)
	}
	eff.raw = merged
	return &eff, nil
}

// Raw returns the merged tree for dotted-path lookups via Value.
func (e *Effective) Raw() map[string]any { return e.raw }
