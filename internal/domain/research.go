// Package domain holds the research pipeline's core value types.
package domain

import "time"

// Depth controls the thoroughness/cost tradeoff of a run.
type Depth string

const (
	DepthQuick      Depth = "quick"
	DepthNormal     Depth = "normal"
	DepthDeep       Depth = "deep"
	DepthExhaustive Depth = "exhaustive"
)

// ValidDepth reports whether d is a known depth preset.
func ValidDepth(d Depth) bool {
	switch d {
	case DepthQuick, DepthNormal, DepthDeep, DepthExhaustive:
		return true
	}
	return false
}

// Preference selects the model tier for a run.
type Preference string

const (
	PreferenceAuto    Preference = "auto"
	PreferenceEconomy Preference = "economy"
	PreferencePremium Preference = "premium"
	PreferenceCustom  Preference = "custom"
)

// ValidPreference reports whether p is a known model preference.
func ValidPreference(p Preference) bool {
	switch p {
	case PreferenceAuto, PreferenceEconomy, PreferencePremium, PreferenceCustom:
		return true
	}
	return false
}

// Stage is one sequential phase of the research pipeline.
type Stage string

const (
	StageDecompose   Stage = "decomposing"
	StageSearch      Stage = "searching"
	StageEvaluate    Stage = "evaluating"
	StageExtract     Stage = "extracting"
	StageSynthesize  Stage = "synthesizing"
	StagePostProcess Stage = "postprocessing"
)

// Stages lists all pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{
		StageDecompose, StageSearch, StageEvaluate,
		StageExtract, StageSynthesize, StagePostProcess,
	}
}

// TokenUsage reports the token consumption of one model call.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Attachment is a user-supplied file reference with pre-extracted text.
type Attachment struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// AcademicSettings selects the fixed-template academic (TCC) synthesis
// variant and its document metadata.
type AcademicSettings struct {
	Enabled     bool   `json:"enabled"`
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Institution string `json:"institution,omitempty"`
}

// ResearchRequest is an inbound research submission. Immutable once
// accepted by the pipeline.
type ResearchRequest struct {
	Query        string           `json:"query"`
	Depth        Depth            `json:"depth,omitempty"`
	Preference   Preference       `json:"modelPreference,omitempty"`
	DomainPreset string           `json:"domainPreset,omitempty"`
	// Overrides is a per-run configuration overlay deep-merged over
	// defaults and user preferences.
	Overrides map[string]any `json:"configOverrides,omitempty"`
	// CustomModels maps stage name to model id when Preference is custom.
	CustomModels map[string]string `json:"customModels,omitempty"`
	Attachments  []Attachment      `json:"attachments,omitempty"`
	Academic     *AcademicSettings `json:"academic,omitempty"`
}

// SubQueryStatus is the lifecycle state of a decomposed sub-query.
type SubQueryStatus string

const (
	SubQueryPending   SubQueryStatus = "pending"
	SubQueryRunning   SubQueryStatus = "running"
	SubQueryCompleted SubQueryStatus = "completed"
	SubQueryFailed    SubQueryStatus = "failed"
)

// SubQuery is one decomposed facet of the research question.
type SubQuery struct {
	ID            string         `json:"id"`
	Text          string         `json:"text"`
	Justification string         `json:"justification,omitempty"`
	Language      string         `json:"language,omitempty"`
	Status        SubQueryStatus `json:"status"`
}

// SearchResult is a raw hit from a search provider.
type SearchResult struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet,omitempty"`
	SubQueryID string `json:"subQueryId"`
}

// EvaluatedSource is a SearchResult scored against the original query.
// All three scores are in [0,1].
type EvaluatedSource struct {
	SearchResult
	RelevanceScore float64 `json:"relevanceScore"`
	RecencyScore   float64 `json:"recencyScore"`
	AuthorityScore float64 `json:"authorityScore"`
	Kept           bool    `json:"kept"`
	// Content is populated by extraction; empty when the fetch failed.
	Content string `json:"-"`
}

// Citation is one numbered entry of the final report's source list.
type Citation struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// RunMetadata captures run bookkeeping for the final response.
type RunMetadata struct {
	RunID       string            `json:"runId"`
	Depth       Depth             `json:"depth"`
	ModelsUsed  map[string]string `json:"modelsUsed"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt"`
}

// ResearchResponse is the final aggregated result of a successful run.
// Immutable after assembly.
type ResearchResponse struct {
	ReportText string      `json:"reportText"`
	Citations  []Citation  `json:"citations"`
	Metadata   RunMetadata `json:"metadata"`
	TotalCost  float64     `json:"totalCostUSD"`
}
