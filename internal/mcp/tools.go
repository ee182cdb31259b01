package mcp

import "github.com/mark3labs/mcp-go/mcp"

// putToolDef describes vault_put to MCP clients.
var putToolDef = mcp.NewTool("vault_put",
	mcp.WithDescription("Store an array of rows in the vault directly, bypassing the OffloadPipeline's sampling and analysis step. Returns a handleId and fetchToken plus the metadata envelope."),
	mcp.WithString("ownerId", mcp.Required(), mcp.Description("DID of the principal the handle is minted for")),
	mcp.WithString("sessionId", mcp.Description("Session the data was produced in")),
	mcp.WithString("sourceTool", mcp.Description("Name of the tool that produced this data")),
	mcp.WithArray("rows", mcp.Required(), mcp.Description("Array of row objects to store")),
)

// queryToolDef describes vault_query to MCP clients.
var queryToolDef = mcp.NewTool("vault_query",
	mcp.WithDescription("Run a read-only SQL query against a previously offloaded vault handle. The table is addressed as {table} in the query text."),
	mcp.WithString("handleId", mcp.Required(), mcp.Description("The vault handle returned when the data was offloaded")),
	mcp.WithString("sql", mcp.Required(), mcp.Description("SQL query text; reference the mounted data as {table}")),
	mcp.WithString("principal", mcp.Description("Owner DID the handle was minted for")),
	mcp.WithString("token", mcp.Description("Fetch token returned alongside the handle")),
)

// retrieveToolDef describes vault_retrieve to MCP clients.
var retrieveToolDef = mcp.NewTool("vault_retrieve",
	mcp.WithDescription("Retrieve the full (or limit-capped) rows behind a vault handle, bypassing SQL."),
	mcp.WithString("handleId", mcp.Required(), mcp.Description("The vault handle returned when the data was offloaded")),
	mcp.WithString("principal", mcp.Description("Owner DID the handle was minted for")),
	mcp.WithString("token", mcp.Description("Fetch token returned alongside the handle")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of rows to return; omit for all rows")),
)

// interceptToolDef describes vault_intercept to MCP clients.
var interceptToolDef = mcp.NewTool("vault_intercept",
	mcp.WithDescription("Run the OffloadPipeline over a raw tool result: sample it, ask the AnalysisAgent which paths to extract, store the extracted arrays in the vault, and return the merged residual payload with metadata envelopes spliced in."),
	mcp.WithString("toolName", mcp.Required(), mcp.Description("Name of the upstream tool that produced rawResult")),
	mcp.WithString("userQuery", mcp.Description("The user query that prompted the tool call")),
	mcp.WithString("ownerId", mcp.Required(), mcp.Description("DID of the principal any minted handles belong to")),
	mcp.WithString("sessionId", mcp.Description("Session the tool call happened in")),
)
