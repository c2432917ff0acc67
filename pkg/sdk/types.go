package profundo

import "time"

// Depth controls the thoroughness/cost tradeoff of a run.
type Depth string

// Depth presets.
const (
	DepthQuick      Depth = "quick"
	DepthNormal     Depth = "normal"
	DepthDeep       Depth = "deep"
	DepthExhaustive Depth = "exhaustive"
)

// Preference selects the model tier for a run.
type Preference string

// Model preference constants.
const (
	PreferenceAuto    Preference = "auto"
	PreferenceEconomy Preference = "economy"
	PreferencePremium Preference = "premium"
	PreferenceCustom  Preference = "custom"
)

// Stage is one sequential phase of the research pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageDecompose   Stage = "decomposing"
	StageSearch      Stage = "searching"
	StageEvaluate    Stage = "evaluating"
	StageExtract     Stage = "extracting"
	StageSynthesize  Stage = "synthesizing"
	StagePostProcess Stage = "postprocessing"
)

// StageStatus is the reported state of a stage within a stage event.
type StageStatus string

// Stage statuses.
const (
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

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

// ResearchRequest is a research submission.
type ResearchRequest struct {
	Query        string            `json:"query"`
	Depth        Depth             `json:"depth,omitempty"`
	Preference   Preference        `json:"modelPreference,omitempty"`
	DomainPreset string            `json:"domainPreset,omitempty"`
	Overrides    map[string]any    `json:"configOverrides,omitempty"`
	CustomModels map[string]string `json:"customModels,omitempty"`
	Attachments  []Attachment      `json:"attachments,omitempty"`
	Academic     *AcademicSettings `json:"academic,omitempty"`
}

// SubQuery is one decomposed facet of the research question.
type SubQuery struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	Justification string `json:"justification,omitempty"`
	Language      string `json:"language,omitempty"`
	Status        string `json:"status"`
}

// Source is an evaluated search hit retained for the report.
type Source struct {
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	Snippet        string  `json:"snippet,omitempty"`
	SubQueryID     string  `json:"subQueryId"`
	RelevanceScore float64 `json:"relevanceScore"`
	RecencyScore   float64 `json:"recencyScore"`
	AuthorityScore float64 `json:"authorityScore"`
	Kept           bool    `json:"kept"`
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
type ResearchResponse struct {
	ReportText string      `json:"reportText"`
	Citations  []Citation  `json:"citations"`
	Metadata   RunMetadata `json:"metadata"`
	TotalCost  float64     `json:"totalCostUSD"`
}

// RunRecord is a saved run from the library.
type RunRecord struct {
	ID        string           `json:"id"`
	Query     string           `json:"query"`
	Depth     Depth            `json:"depth"`
	Response  ResearchResponse `json:"response"`
	CreatedAt time.Time        `json:"createdAt"`
}

// RunStatus describes a currently executing run.
type RunStatus struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Depth     Depth     `json:"depth"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"startedAt"`
}

// ModelSelection is the projected model choice for one stage.
type ModelSelection struct {
	ModelID               string   `json:"modelId"`
	EstimatedInputTokens  int      `json:"estimatedInputTokens"`
	EstimatedOutputTokens int      `json:"estimatedOutputTokens"`
	EstimatedCostUSD      float64  `json:"estimatedCostUSD"`
	FallbackChain         []string `json:"fallbackChain"`
}

// Estimate is a projected run cost before execution.
type Estimate struct {
	PerStage map[Stage]ModelSelection `json:"perStage"`
	TotalUSD float64                  `json:"totalUSD"`
}

// ChatMessage is one turn of a follow-up conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest asks a follow-up question, optionally grounded in a
// saved run's report.
type ChatRequest struct {
	RunID      string        `json:"runId,omitempty"`
	Messages   []ChatMessage `json:"messages"`
	Preference Preference    `json:"modelPreference,omitempty"`
}

// Image is a generated illustration, by URL or inline base64.
type Image struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64Json,omitempty"`
}
