package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ixoworld/datavault/internal/pipeline"
	"github.com/ixoworld/datavault/internal/query"
	"github.com/ixoworld/datavault/internal/vault"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"vault_put": {
		def:     putToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePut },
	},
	"vault_query": {
		def:     queryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQuery },
	},
	"vault_retrieve": {
		def:     retrieveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRetrieve },
	},
	"vault_intercept": {
		def:     interceptToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIntercept },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// NewServer creates a new MCP server exposing the vault's put, query,
// retrieve, and intercept tools to agent clients that talk MCP directly.
// pipe may be nil, in which case vault_intercept reports a validation
// error instead of silently passing data through.
func NewServer(store *vault.Store, engine *query.Engine, pipe *pipeline.Pipeline, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"datavault",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(store, engine, pipe)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(store *vault.Store, engine *query.Engine, pipe *pipeline.Pipeline, version string) error {
	s := NewServer(store, engine, pipe, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
