package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	deckmcp "github.com/taskdeck/taskdeck/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the taskdeck MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the taskdeck MCP server on stdio",
	Long: `Start the taskdeck MCP server on stdio transport.

The server exposes routed task data and resilience health as MCP tools
that AI coding assistants can call: get_tasks, get_stats, get_next_task,
get_complexity_report, get_health.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Router == nil {
			return fmt.Errorf("data router not initialized")
		}

		srv := deckmcp.NewServer(Router, Runner, Classifier, Cache, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
