package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ixoworld/datavault/internal/vaulterr"
)

// defaultDeadline bounds every analysis call, per spec.md §5: "governed
// by the configured LLM client (implementations should set a deadline
// <= 10 s)".
const defaultDeadline = 10 * time.Second

const maxTokens = 2048

// AnthropicAgent implements Agent against the official Anthropic SDK.
type AnthropicAgent struct {
	client anthropic.Client
	model  string
}

// NewAnthropicAgent builds an AnthropicAgent for the given API key and
// model, grounded on the official-SDK call shape in this corpus (the
// Bedrock-backed client in another example repo, adapted here to plain
// API-key auth via option.WithAPIKey rather than a Bedrock config).
func NewAnthropicAgent(apiKey, model string) *AnthropicAgent {
	return &AnthropicAgent{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Analyze sends samples and tool context to the model and parses its
// reply per spec.md §4.5's contract.
func (a *AnthropicAgent) Analyze(ctx context.Context, samples SampleSet, toolCtx ToolContext, basicMeta BasicMeta) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultDeadline)
	defer cancel()

	prompt := buildPrompt(samples, toolCtx, basicMeta)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, vaulterr.NewAnalysisFailure(fmt.Sprintf("analysis agent call failed: %v", err))
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return ParseReply(text)
}

func buildPrompt(samples SampleSet, toolCtx ToolContext, basicMeta BasicMeta) string {
	argsJSON, _ := json.Marshal(toolCtx.ToolArgs)

	var b []byte
	b = append(b, []byte("You are analyzing a tool response to decide what data should be offloaded to a side-channel vault versus kept inline in the conversation.\n\n")...)
	b = append(b, []byte(fmt.Sprintf("Tool: %s\nArguments: %s\nUser query: %s\nRow count (approx): %d\nSize (bytes, approx): %d\n\n", toolCtx.ToolName, argsJSON, toolCtx.UserQuery, basicMeta.RowCount, basicMeta.SizeBytes))...)
	b = append(b, []byte("Strategy: "+samples.Strategy+"\n\n--- first ---\n")...)
	b = append(b, []byte(samples.First)...)
	for _, m := range samples.Middle {
		b = append(b, []byte("\n--- middle ---\n")...)
		b = append(b, []byte(m)...)
	}
	b = append(b, []byte("\n--- last ---\n")...)
	b = append(b, []byte(samples.Last)...)
	b = append(b, []byte(`

Reply with ONLY a JSON object with exactly these fields:
{
  "semanticDescription": "...",
  "dataType": "timeseries|tabular|hierarchical|geospatial|text|mixed",
  "offloadRecommendation": "offload_all|offload_array|keep_inline|aggregate_first",
  "offloadReason": "...",
  "visualizationSuggestions": ["..."],
  "visualizationRationale": "...",
  "qualityInsights": ["..."],
  "metadataEnhancements": {},
  "dataExtractionPaths": ["dot.notation.path"],
  "preserveInlinePaths": ["dot.notation.path"]
}`)...)

	return string(b)
}
