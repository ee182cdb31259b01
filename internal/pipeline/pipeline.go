// Package pipeline implements the OffloadPipeline (spec.md §4.6): the
// tool-response interceptor that samples a payload strategically,
// invokes an AnalysisAgent to discover extraction paths, and partitions
// the payload into vault-offloaded and LLM-inline fractions.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ixoworld/datavault/internal/analysis"
	"github.com/ixoworld/datavault/internal/pathops"
	"github.com/ixoworld/datavault/internal/vault"
	"github.com/ixoworld/datavault/internal/vaulterr"
)

// Request carries the upstream tool-invocation context passed into
// Intercept, per spec.md §6's "tool wrapper input/output shape".
type Request struct {
	ToolName  string
	ToolArgs  any
	UserQuery string
	RawResult any
	OwnerID   string
	SessionID string
}

// Pipeline orchestrates sample -> analyze -> extract -> store -> merge.
// A nil Agent is the documented opt-out fallback path (spec.md §4.6 step
// 4): the payload passes through unchanged.
type Pipeline struct {
	Store *vault.Store
	Agent analysis.Agent
}

// New constructs a Pipeline. agent may be nil.
func New(store *vault.Store, agent analysis.Agent) *Pipeline {
	return &Pipeline{Store: store, Agent: agent}
}

// Intercept runs the full interception algorithm and returns the JSON
// string to deliver to the LLM in place of the raw tool result.
func (p *Pipeline) Intercept(ctx context.Context, req Request) (string, error) {
	payload, err := unwrapPayload(req.RawResult)
	if err != nil {
		return "", err
	}

	if p.Agent == nil {
		return serialize(payload)
	}

	serializedPayload, err := serialize(payload)
	if err != nil {
		return "", err
	}
	sample := vault.BuildSample(serializedPayload)

	result, err := p.Agent.Analyze(ctx, analysis.SampleSet{
		First:    sample.First,
		Middle:   sample.Middle,
		Last:     sample.Last,
		Strategy: sample.Strategy,
	}, analysis.ToolContext{
		ToolName:  req.ToolName,
		ToolArgs:  req.ToolArgs,
		UserQuery: req.UserQuery,
	}, analysis.BasicMeta{
		RowCount:  rowCountOf(payload),
		SizeBytes: len(serializedPayload),
	})
	if err != nil {
		return "", err
	}

	if result.OffloadRecommendation == analysis.RecommendKeepInline {
		return serialize(payload)
	}

	if len(result.DataExtractionPaths) == 0 {
		return "", vaulterr.NewValidationError("analysis recommended offload but returned no data extraction paths")
	}

	extracted, residual, err := pathops.Extract(payload, result.DataExtractionPaths, result.PreserveInlinePaths)
	if err != nil {
		return "", err
	}

	accumulator := map[string]any{}
	for _, v := range extracted {
		rows, ok := toRows(v)
		if !ok {
			continue
		}
		if len(rows) == 0 {
			continue
		}

		semantics := &vault.Semantics{
			Description:             result.SemanticDescription,
			DataType:                result.DataType,
			SuggestedVisualizations: result.VisualizationSuggestions,
			VisualizationRationale:  result.VisualizationRationale,
			QualityInsights:         result.QualityInsights,
			Enhancements:            result.MetadataEnhancements,
		}
		dataSource := vault.DataSource{
			ToolName:  req.ToolName,
			ToolArgs:  req.ToolArgs,
			UserQuery: req.UserQuery,
			Timestamp: time.Now(),
		}

		_, envelope, err := p.Store.Put(rows, req.OwnerID, req.SessionID, req.ToolName, dataSource, semantics)
		if err != nil {
			return "", err
		}

		merged, err := envelopeToMap(envelope)
		if err != nil {
			return "", err
		}
		for k, v := range merged {
			accumulator[k] = v
		}
	}

	merged := mergeResidual(residual, accumulator)
	return serialize(merged)
}

// unwrapPayload implements spec.md §4.6 steps 2-3: a string result that
// parses as JSON is replaced by the parsed value; a wrapper envelope
// {lc_serializable, content} is unwrapped, parsing a string content as
// JSON when possible.
func unwrapPayload(raw any) (any, error) {
	payload := raw

	if s, ok := payload.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			payload = parsed
		}
	}

	if m, ok := payload.(map[string]any); ok {
		if _, isWrapper := m["lc_serializable"]; isWrapper {
			if content, has := m["content"]; has {
				if cs, ok := content.(string); ok {
					var parsedContent any
					if err := json.Unmarshal([]byte(cs), &parsedContent); err == nil {
						payload = parsedContent
					} else {
						payload = cs
					}
				} else {
					payload = content
				}
			}
		}
	}

	return payload, nil
}

func rowCountOf(payload any) int {
	if arr, ok := payload.([]any); ok {
		return len(arr)
	}
	return 0
}

func toRows(v any) ([]vault.Row, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	rows := make([]vault.Row, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			// item already passed through a map[string]any somewhere
			// upstream, so its original key order is gone; RowFromMap
			// assigns a deterministic (sorted) order in its place.
			rows = append(rows, vault.RowFromMap(m))
			continue
		}
		// Non-object array elements (scalars) are wrapped so every row
		// still satisfies MetadataExtractor's "row is a column mapping"
		// assumption.
		rows = append(rows, vault.Row{{Key: "value", Value: item}})
	}
	return rows, true
}

func envelopeToMap(envelope vault.MetadataEnvelope) (map[string]any, error) {
	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func mergeResidual(residual any, accumulator map[string]any) any {
	if residualMap, ok := residual.(map[string]any); ok {
		out := make(map[string]any, len(residualMap)+len(accumulator))
		for k, v := range residualMap {
			out[k] = v
		}
		for k, v := range accumulator {
			out[k] = v
		}
		return out
	}
	if len(accumulator) == 0 {
		return residual
	}
	out := make(map[string]any, len(accumulator)+1)
	for k, v := range accumulator {
		out[k] = v
	}
	out["_residual"] = residual
	return out
}

func serialize(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
