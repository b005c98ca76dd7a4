package main

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/spf13/cobra"

	mcptools "github.com/felixgeelhaar/sous/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI agent integration",
	Long: `Start a Model Context Protocol (MCP) server for AI agent integration.

The MCP server exposes the meal planner to AI agents via the Model
Context Protocol, so an assistant can read your plan, suggest meals
and build grocery lists.

Available tools:
  - sous_list_recipes        List recipes with search and tag filters
  - sous_get_recipe          Get one recipe with its ingredients
  - sous_week_plan           Show planned meals for a date range
  - sous_grocery_list        Read a grocery list and its items
  - sous_sync_status         Report this device's sync position
  - sous_schedule_meal       Schedule a recipe (requires confirm)
  - sous_generate_groceries  Generate a grocery list (requires confirm)

Examples:
  sous mcp               # Start stdio MCP server
  sous mcp --http :8080  # Start HTTP MCP server`,
	RunE: runMCP,
}

var mcpHTTP string

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVar(&mcpHTTP, "http", "", "Start HTTP server on address (e.g., :8080)")
}

func runMCP(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	// Create MCP server
	srv := mcp.NewServer(mcp.ServerInfo{
		Name:    "sous",
		Version: version,
	})

	// Register all tools with version info
	versionInfo := mcptools.VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: date,
	}
	mcptools.RegisterAll(srv, env.planner, env.grocery, env.syncer, versionInfo)

	// Serve based on transport
	if mcpHTTP != "" {
		return mcp.ServeHTTP(ctx, srv, mcpHTTP)
	}

	// Default to stdio
	return mcp.ServeStdio(ctx, srv)
}
