package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ixoworld/datavault/internal/config"
	"github.com/ixoworld/datavault/internal/query"
	"github.com/ixoworld/datavault/internal/vault"
)

// newCLIApp creates the CLI application with the serve/mcp commands, per
// SPEC_FULL.md §2.4. store/engine/cfg are nil for --help/--version, which
// don't need a running vault.
func newCLIApp(store *vault.Store, engine *query.Engine, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "datavaultd",
		Usage:   "LLM data vault retrieval server",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(store, engine),
			mcpCmd(store, engine, cfg),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command, starting the HTTP RetrievalAPI.
func serveCmd(store *vault.Store, engine *query.Engine) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP RetrievalAPI server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "0.0.0.0", Usage: "Address to bind to"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			if err := runServe(store, engine, c.String("bind"), c.Int("port")); err != nil {
				return cli.Exit(fmt.Sprintf("serve: %v", err), 1)
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command, starting the MCP stdio server for host
// agents that talk MCP directly rather than through HTTP.
func mcpCmd(store *vault.Store, engine *query.Engine, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start the MCP stdio server",
		Action: func(c *cli.Context) error {
			if err := runMCP(store, engine, cfg); err != nil {
				return cli.Exit(fmt.Sprintf("mcp: %v", err), 1)
			}
			return nil
		},
	}
}
