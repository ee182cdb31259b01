// Package analysis implements the AnalysisAgent (spec.md §4.5): an
// external LLM call that, given strategic samples of a tool response,
// returns a structured extraction plan declaring which paths to offload
// and which to keep inline, plus a semantic classification.
package analysis

import "context"

// ToolContext carries the provenance of the tool call under analysis.
type ToolContext struct {
	ToolName  string
	ToolArgs  any
	UserQuery string
}

// Result is the AnalysisAgent's structured reply, per spec.md §4.5. The
// four fields marked mandatory below must be present in every reply;
// their absence is an AnalysisFailure.
type Result struct {
	SemanticDescription       string         `json:"semanticDescription"` // mandatory
	DataType                  string         `json:"dataType"`
	OffloadRecommendation     string         `json:"offloadRecommendation"` // mandatory; one of offload_all, offload_array, keep_inline, aggregate_first
	OffloadReason             string         `json:"offloadReason"`
	VisualizationSuggestions  []string       `json:"visualizationSuggestions"`
	VisualizationRationale    string         `json:"visualizationRationale"`
	QualityInsights           []string       `json:"qualityInsights"`
	MetadataEnhancements      map[string]any `json:"metadataEnhancements"`
	DataExtractionPaths       []string       `json:"dataExtractionPaths"` // mandatory
	PreserveInlinePaths       []string       `json:"preserveInlinePaths"` // mandatory
}

const (
	RecommendOffloadAll     = "offload_all"
	RecommendOffloadArray   = "offload_array"
	RecommendKeepInline     = "keep_inline"
	RecommendAggregateFirst = "aggregate_first"
)

// SampleSet mirrors vault.Sample without importing the vault package,
// keeping AnalysisAgent decoupled from the store's internal sampling
// representation; the pipeline adapts one into the other.
type SampleSet struct {
	First    string
	Middle   []string
	Last     string
	Strategy string
}

// BasicMeta is the cheap, pre-analysis metadata the pipeline already has
// in hand (row count and byte size) before the agent is consulted.
type BasicMeta struct {
	RowCount  int
	SizeBytes int
}

// Agent calls an external LLM with strategic samples and returns a
// parsed, validated extraction plan.
type Agent interface {
	Analyze(ctx context.Context, samples SampleSet, toolCtx ToolContext, basicMeta BasicMeta) (*Result, error)
}
