package main

import (
	"fmt"

	"github.com/ayanftw/commit-history/internal/mcpserver"
	"github.com/urfave/cli/v2"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes the history
analysis as tools that LLMs can invoke.

To use with an MCP client, add to its config:
  {
    "mcpServers": {
      "commit-history": {
        "command": "commit-history",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - analyze_history   Complexity timeline, breaches, reversals and outliers
  - trace_file        Full history of one file and its functions
  - commit_log        Recent commits across repositories by day`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:   "manifest",
				Usage:  "Print the MCP registry manifest (server.json)",
				Action: runMCPManifestCmd,
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(c)
	defer stop()

	server := mcpserver.NewServer(version,
		mcpserver.WithConfig(cfg),
		mcpserver.WithLogger(newLogger(cfg)),
	)
	return server.Run(ctx)
}

func runMCPManifestCmd(c *cli.Context) error {
	data, err := mcpserver.GenerateManifest(version)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
