package main

import (
	"fmt"
	"os"

	"github.com/ixoworld/datavault/internal/analysis"
	"github.com/ixoworld/datavault/internal/config"
	"github.com/ixoworld/datavault/internal/mcp"
	"github.com/ixoworld/datavault/internal/pipeline"
	"github.com/ixoworld/datavault/internal/query"
	"github.com/ixoworld/datavault/internal/vault"
	"github.com/ixoworld/datavault/internal/web"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// serveModes are the CLI subcommands handled by newCLIApp; anything else
// falls through to the default HTTP server, per SPEC_FULL.md §2.4.
var serveModes = map[string]bool{
	"serve": true, "mcp": true, "help": true,
}

func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if serveModes[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

func main() {
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	store := vault.NewStore(cfg.MaxInlineRows, cfg.MaxInlineBytes, cfg.MaxInlineTokens, cfg.TTL, cfg.GracePeriod)
	defer store.Close()

	engine, err := query.NewEngine(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to start query engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	if isCLIMode() {
		app := newCLIApp(store, engine, cfg)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Default: HTTP RetrievalAPI server (SPEC_FULL.md §2.4).
	if err := runServe(store, engine, "0.0.0.0", 8080); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runServe starts the HTTP RetrievalAPI server.
func runServe(store *vault.Store, engine *query.Engine, bind string, port int) error {
	srv := web.NewServer(store, engine, bind, port)
	return web.Run(srv)
}

// runMCP starts the MCP stdio server, for host agents that talk MCP
// directly rather than through the HTTP RetrievalAPI. The server's
// vault_intercept tool runs the OffloadPipeline against newAnalysisAgent's
// agent, letting a host wrap its own tool calls through MCP instead of
// embedding the pipeline package directly.
func runMCP(store *vault.Store, engine *query.Engine, cfg *config.Config) error {
	pipe := pipeline.New(store, newAnalysisAgent(cfg))
	return mcp.Run(store, engine, pipe, Version)
}

// newAnalysisAgent builds the AnthropicAgent when an API key is configured,
// or nil, in which case the OffloadPipeline passes data through unanalyzed
// (pipeline.go's documented nil-agent fallback).
func newAnalysisAgent(cfg *config.Config) analysis.Agent {
	if cfg == nil || cfg.AnthropicAPIKey == "" {
		return nil
	}
	return analysis.NewAnthropicAgent(cfg.AnthropicAPIKey, cfg.AnalysisModel)
}
