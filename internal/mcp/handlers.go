package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ixoworld/datavault/internal/pipeline"
	"github.com/ixoworld/datavault/internal/query"
	"github.com/ixoworld/datavault/internal/vault"
	"github.com/ixoworld/datavault/internal/vaulterr"
)

// Handlers holds dependencies for MCP tool handlers exposing the vault to
// agent clients that talk MCP directly rather than through the RetrievalAPI.
type Handlers struct {
	store    *vault.Store
	engine   *query.Engine
	pipeline *pipeline.Pipeline
}

// NewHandlers creates a new Handlers instance. pipe may be nil; vault_put,
// vault_query, and vault_retrieve all still work against store/engine, but
// vault_intercept (which has no vault.Store/query.Engine-only path of its
// own) rejects every call with a validation error until a Pipeline is
// configured.
func NewHandlers(store *vault.Store, engine *query.Engine, pipe *pipeline.Pipeline) *Handlers {
	return &Handlers{store: store, engine: engine, pipeline: pipe}
}

// PutRequest represents the arguments for vault_put.
type PutRequest struct {
	OwnerID    string      `json:"ownerId"`
	SessionID  string      `json:"sessionId,omitempty"`
	SourceTool string      `json:"sourceTool,omitempty"`
	Rows       []vault.Row `json:"rows"`
}

// HandlePut handles the vault_put tool call, storing rows directly and
// returning the resulting metadata envelope (spec.md §4.2).
func (h *Handlers) HandlePut(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PutRequest](req)
	if err != nil {
		return errorResult(vaulterr.NewValidationError(err.Error())), nil
	}
	if input.OwnerID == "" {
		return errorResult(vaulterr.NewValidationError("ownerId is required")), nil
	}

	dataSource := vault.DataSource{ToolName: input.SourceTool, Timestamp: time.Now()}
	handleID, envelope, err := h.store.Put(input.Rows, input.OwnerID, input.SessionID, input.SourceTool, dataSource, nil)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"handleId": handleID,
		"metadata": envelope,
	})
}

// QueryRequest represents the arguments for vault_query.
type QueryRequest struct {
	HandleID  string `json:"handleId"`
	SQL       string `json:"sql"`
	Principal string `json:"principal"`
	Token     string `json:"token"`
}

// RetrieveRequest represents the arguments for vault_retrieve.
type RetrieveRequest struct {
	HandleID  string `json:"handleId"`
	Principal string `json:"principal"`
	Token     string `json:"token"`
	Limit     int    `json:"limit,omitempty"`
}

// HandleQuery handles the vault_query tool call, running a read-only SQL
// query against the handle's mounted temp table (spec.md §4.7).
func (h *Handlers) HandleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[QueryRequest](req)
	if err != nil {
		return errorResult(vaulterr.NewValidationError(err.Error())), nil
	}
	if input.HandleID == "" || input.SQL == "" {
		return errorResult(vaulterr.NewValidationError("handleId and sql are required")), nil
	}

	result, err := h.engine.ExecuteQuery(ctx, input.HandleID, input.SQL, input.Principal, input.Token)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRetrieve handles the vault_retrieve tool call, returning the full
// (or limit-capped) payload for a handle (spec.md §4.7).
func (h *Handlers) HandleRetrieve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RetrieveRequest](req)
	if err != nil {
		return errorResult(vaulterr.NewValidationError(err.Error())), nil
	}
	if input.HandleID == "" {
		return errorResult(vaulterr.NewValidationError("handleId is required")), nil
	}

	result, err := h.engine.RetrieveFullData(input.HandleID, input.Principal, input.Token, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// InterceptRequest represents the arguments for vault_intercept.
type InterceptRequest struct {
	ToolName  string `json:"toolName"`
	ToolArgs  any    `json:"toolArgs,omitempty"`
	UserQuery string `json:"userQuery,omitempty"`
	RawResult any    `json:"rawResult"`
	OwnerID   string `json:"ownerId"`
	SessionID string `json:"sessionId,omitempty"`
}

// HandleIntercept handles the vault_intercept tool call, running the
// OffloadPipeline's sample -> analyze -> extract -> store -> merge
// algorithm (spec.md §4.6) over a raw tool result on the caller's behalf,
// for host agents that wrap their own tool calls through MCP rather than
// embedding the pipeline package directly.
func (h *Handlers) HandleIntercept(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InterceptRequest](req)
	if err != nil {
		return errorResult(vaulterr.NewValidationError(err.Error())), nil
	}
	if input.ToolName == "" || input.OwnerID == "" {
		return errorResult(vaulterr.NewValidationError("toolName and ownerId are required")), nil
	}
	if h.pipeline == nil {
		return errorResult(vaulterr.NewValidationError("pipeline not configured")), nil
	}

	out, err := h.pipeline.Intercept(ctx, pipeline.Request{
		ToolName:  input.ToolName,
		ToolArgs:  input.ToolArgs,
		UserQuery: input.UserQuery,
		RawResult: input.RawResult,
		OwnerID:   input.OwnerID,
		SessionID: input.SessionID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		return successResult(map[string]any{"result": out})
	}
	return successResult(map[string]any{"result": decoded})
}

// errorResult creates an MCP error result from any error. Internal error
// details are never exposed; only the structured vault error is surfaced.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if vaultErr, ok := err.(*vaulterr.VaultError); ok {
		errorObj := map[string]any{
			"code":    vaultErr.Code,
			"message": vaultErr.Message,
			"status":  vaultErr.Status,
		}
		if vaultErr.Code != vaulterr.CodeBackendError && vaultErr.Details != nil {
			errorObj["details"] = vaultErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
