package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ixoworld/datavault/internal/analysis"
	"github.com/ixoworld/datavault/internal/pipeline"
	"github.com/ixoworld/datavault/internal/query"
	"github.com/ixoworld/datavault/internal/vault"
)

func testSetup(t *testing.T) (*Handlers, *vault.Store) {
	t.Helper()
	store := vault.NewStore(100, 51200, 10000, 30*time.Minute, 5*time.Minute)
	engine, err := query.NewEngine(store)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		store.Close()
	})
	return NewHandlers(store, engine, pipeline.New(store, nil)), store
}

// fakeAgent is a canned AnalysisAgent for exercising vault_intercept
// without a live LLM call.
type fakeAgent struct {
	result *analysis.Result
}

func (f *fakeAgent) Analyze(ctx context.Context, samples analysis.SampleSet, toolCtx analysis.ToolContext, basicMeta analysis.BasicMeta) (*analysis.Result, error) {
	return f.result, nil
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal tool output: %v", err)
	}
	return output
}

func TestHandlePut_Success(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	req := makeRequest(map[string]any{
		"ownerId":    "owner-1",
		"sessionId":  "sess-1",
		"sourceTool": "search_orders",
		"rows":       []any{map[string]any{"id": float64(1)}, map[string]any{"id": float64(2)}},
	})
	result, err := h.HandlePut(ctx, req)
	if err != nil {
		t.Fatalf("HandlePut() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", result.Content)
	}
	output := parseOutput(t, result)
	if output["handleId"] == nil || output["handleId"] == "" {
		t.Error("expected a non-empty handleId")
	}
	metadata, _ := output["metadata"].(map[string]any)
	if metadata == nil || metadata["rowCount"] != float64(2) {
		t.Errorf("metadata = %+v, want rowCount 2", metadata)
	}
}

func TestHandlePut_MissingOwnerIDIsValidationError(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	req := makeRequest(map[string]any{"rows": []any{map[string]any{"id": float64(1)}}})
	result, err := h.HandlePut(ctx, req)
	if err != nil {
		t.Fatalf("HandlePut() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing ownerId")
	}
	errObj := parseOutput(t, result)["error"].(map[string]any)
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("code = %v, want VALIDATION_ERROR", errObj["code"])
	}
}

func TestHandleQuery_Success(t *testing.T) {
	h, store := testSetup(t)
	ctx := context.Background()

	rows := []vault.Row{{{Key: "id", Value: float64(1)}, {Key: "amount", Value: float64(10)}}, {{Key: "id", Value: float64(2)}, {Key: "amount", Value: float64(20)}}}
	handle, envelope, err := store.Put(rows, "owner-1", "sess-1", "search_orders", vault.DataSource{ToolName: "search_orders"}, nil)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	req := makeRequest(map[string]any{
		"handleId":  handle,
		"sql":       "SELECT COUNT(*) AS n FROM {table}",
		"principal": "owner-1",
		"token":     envelope.FetchToken,
	})
	result, err := h.HandleQuery(ctx, req)
	if err != nil {
		t.Fatalf("HandleQuery() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", result.Content)
	}
	output := parseOutput(t, result)
	if output["rowCount"] != float64(1) {
		t.Errorf("rowCount = %v, want 1", output["rowCount"])
	}
}

func TestHandleQuery_MissingHandleIDIsValidationError(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	req := makeRequest(map[string]any{"sql": "SELECT 1"})
	result, err := h.HandleQuery(ctx, req)
	if err != nil {
		t.Fatalf("HandleQuery() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing handleId")
	}
	errObj := parseOutput(t, result)["error"].(map[string]any)
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("code = %v, want VALIDATION_ERROR", errObj["code"])
	}
}

func TestHandleQuery_WrongTokenReturnsDataNotFound(t *testing.T) {
	h, store := testSetup(t)
	ctx := context.Background()

	handle, _, err := store.Put([]vault.Row{{{Key: "id", Value: float64(1)}}}, "owner-1", "sess-1", "t", vault.DataSource{}, nil)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	req := makeRequest(map[string]any{
		"handleId":  handle,
		"sql":       "SELECT * FROM {table}",
		"principal": "owner-1",
		"token":     "wrong-token",
	})
	result, err := h.HandleQuery(ctx, req)
	if err != nil {
		t.Fatalf("HandleQuery() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for wrong token")
	}
	errObj := parseOutput(t, result)["error"].(map[string]any)
	if errObj["code"] != "DATA_NOT_FOUND" {
		t.Errorf("code = %v, want DATA_NOT_FOUND", errObj["code"])
	}
}

func TestHandleRetrieve_Success(t *testing.T) {
	h, store := testSetup(t)
	ctx := context.Background()

	rows := make([]vault.Row, 10)
	for i := range rows {
		rows[i] = vault.Row{{Key: "id", Value: float64(i)}}
	}
	handle, envelope, err := store.Put(rows, "owner-1", "sess-1", "t", vault.DataSource{}, nil)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	req := makeRequest(map[string]any{
		"handleId":  handle,
		"principal": "owner-1",
		"token":     envelope.FetchToken,
		"limit":     float64(3),
	})
	result, err := h.HandleRetrieve(ctx, req)
	if err != nil {
		t.Fatalf("HandleRetrieve() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", result.Content)
	}
	output := parseOutput(t, result)
	rowsOut, _ := output["rows"].([]any)
	if len(rowsOut) != 3 {
		t.Errorf("len(rows) = %d, want 3", len(rowsOut))
	}
	if output["limitApplied"] != true {
		t.Errorf("limitApplied = %v, want true", output["limitApplied"])
	}
}

func TestHandleRetrieve_UnknownHandleReturnsDataNotFound(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	req := makeRequest(map[string]any{"handleId": "vault-nonexistent", "principal": "owner-1", "token": "t"})
	result, err := h.HandleRetrieve(ctx, req)
	if err != nil {
		t.Fatalf("HandleRetrieve() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown handle")
	}
	errObj := parseOutput(t, result)["error"].(map[string]any)
	if errObj["code"] != "DATA_NOT_FOUND" {
		t.Errorf("code = %v, want DATA_NOT_FOUND", errObj["code"])
	}
}

func TestHandleIntercept_Success(t *testing.T) {
	store := vault.NewStore(100, 51200, 10000, 30*time.Minute, 5*time.Minute)
	engine, err := query.NewEngine(store)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		store.Close()
	})

	agent := &fakeAgent{result: &analysis.Result{
		SemanticDescription:   "order rows",
		DataType:              "tabular",
		OffloadRecommendation: analysis.RecommendOffloadArray,
		DataExtractionPaths:   []string{"orders"},
		PreserveInlinePaths:   []string{"summary"},
	}}
	h := NewHandlers(store, engine, pipeline.New(store, agent))
	ctx := context.Background()

	req := makeRequest(map[string]any{
		"toolName": "search_orders",
		"ownerId":  "owner-1",
		"rawResult": map[string]any{
			"summary": "3 orders found",
			"orders":  []any{map[string]any{"id": float64(1)}, map[string]any{"id": float64(2)}},
		},
	})
	result, err := h.HandleIntercept(ctx, req)
	if err != nil {
		t.Fatalf("HandleIntercept() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", result.Content)
	}
	output := parseOutput(t, result)
	merged, _ := output["result"].(map[string]any)
	if merged["summary"] != "3 orders found" {
		t.Errorf("summary = %v, want preserved inline value", merged["summary"])
	}
	if merged["handleId"] == nil {
		t.Error("expected the extracted orders array to be replaced by a handle envelope")
	}
}

func TestHandleIntercept_NilPipelineIsValidationError(t *testing.T) {
	h, _ := testSetup(t)
	h.pipeline = nil
	ctx := context.Background()

	req := makeRequest(map[string]any{"toolName": "t", "ownerId": "owner-1", "rawResult": []any{}})
	result, err := h.HandleIntercept(ctx, req)
	if err != nil {
		t.Fatalf("HandleIntercept() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unconfigured pipeline")
	}
}

func TestServerRegistration(t *testing.T) {
	store := vault.NewStore(100, 51200, 10000, 30*time.Minute, 5*time.Minute)
	defer store.Close()
	engine, err := query.NewEngine(store)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	defer engine.Close()

	s := NewServer(store, engine, pipeline.New(store, nil), "test")
	if s == nil {
		t.Fatal("expected a non-nil server")
	}

	names := AllToolNames()
	want := map[string]bool{"vault_put": true, "vault_query": true, "vault_retrieve": true, "vault_intercept": true}
	if len(names) != len(want) {
		t.Fatalf("got %d tools, want %d", len(names), len(want))
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected tool registered: %s", n)
		}
	}
}
