package analysis

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ixoworld/datavault/internal/vaulterr"
)

// fencedBlockPattern unwraps a ```json ... ``` or bare ``` ... ``` fence,
// allowing multiline content, mirroring the dotall structured-text
// extraction style used for ReAct-formatted LLM replies elsewhere in this
// corpus.
var fencedBlockPattern = regexp.MustCompile("(?is)```(?:json)?\\s*(.+?)\\s*```")

// lineCommentPattern strips a trailing `// ...` line comment. It avoids
// matching `//` inside a quoted string by requiring the comment marker to
// be preceded only by whitespace after the last unescaped quote on the
// line; in practice LLM replies place comments at end-of-line outside
// strings, so a conservative whole-line match is sufficient here.
var lineCommentPattern = regexp.MustCompile(`(?m)^(\s*(?:"[^"\\]*(?:\\.[^"\\]*)*"[^"]*)*?)\s*//[^\n]*$`)

// trailingCommaPattern strips a comma immediately before a closing brace
// or bracket, tolerating intervening whitespace/newlines.
var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

// unwrapReply extracts the JSON payload from a raw LLM text reply per
// spec.md §4.5's parsing contract: unwrap a fenced code block if present,
// strip line comments and trailing commas, then the result is ready for
// json.Unmarshal.
func unwrapReply(raw string) string {
	text := raw
	if m := fencedBlockPattern.FindStringSubmatch(text); len(m) > 1 {
		text = m[1]
	}
	text = lineCommentPattern.ReplaceAllString(text, "$1")
	text = trailingCommaPattern.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// ParseReply parses a raw AnalysisAgent text reply into a Result,
// enforcing the mandatory-field contract of spec.md §4.5. Any parse
// failure or missing mandatory field is an AnalysisFailure; the pipeline
// never falls back to heuristic extraction.
func ParseReply(raw string) (*Result, error) {
	cleaned := unwrapReply(raw)
	if cleaned == "" {
		return nil, vaulterr.NewAnalysisFailure("analysis reply was empty")
	}

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, vaulterr.NewAnalysisFailure("analysis reply was not valid JSON: " + err.Error())
	}

	var missing []string
	if result.SemanticDescription == "" {
		missing = append(missing, "semanticDescription")
	}
	if result.OffloadRecommendation == "" {
		missing = append(missing, "offloadRecommendation")
	}
	if result.DataExtractionPaths == nil {
		missing = append(missing, "dataExtractionPaths")
	}
	if result.PreserveInlinePaths == nil {
		missing = append(missing, "preserveInlinePaths")
	}
	if len(missing) > 0 {
		return nil, vaulterr.NewAnalysisFailure("analysis reply missing required field(s): " + strings.Join(missing, ", "))
	}

	return &result, nil
}
