package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// decode converts an MCP tool call's loosely-typed argument map into a
// concrete request struct. Round-tripping through JSON, rather than
// reflecting over the map directly, makes struct tags (json names,
// omitempty) and nested types behave exactly as they would decoding a
// real HTTP request body.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var out T

	args := req.GetArguments()
	if len(args) == 0 {
		return out, nil
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("encode tool arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode tool arguments: %w", err)
	}
	return out, nil
}
