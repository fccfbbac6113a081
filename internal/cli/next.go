package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var nextJSONOutput bool

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the recommended next task",
	Long: `Show the task Task Master recommends working on next. When the CLI is
unreachable the recommendation is derived from cached or fallback task
data by picking the highest-priority pending task whose dependencies
are all done.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Router == nil {
			return fmt.Errorf("data router not initialized")
		}

		result := Router.GetNextTask(cmd.Context())

		if nextJSONOutput {
			return json.NewEncoder(os.Stdout).Encode(result.Next)
		}

		printProvenance(result.Source, result.Level)
		if result.Next == nil || result.Next.Task == nil {
			reason := "no pending tasks"
			if result.Next != nil && result.Next.Reason != "" {
				reason = result.Next.Reason
			}
			fmt.Printf("No next task: %s\n", reason)
			return nil
		}

		t := result.Next.Task
		fmt.Printf("Next task: #%d %s\n", t.ID, t.Title)
		fmt.Printf("  priority: %s\n", t.Priority)
		if t.Description != "" {
			fmt.Printf("  %s\n", t.Description)
		}
		if result.Next.Reason != "" {
			fmt.Printf("  reason: %s\n", result.Next.Reason)
		}
		return nil
	},
}

func init() {
	nextCmd.Flags().BoolVar(&nextJSONOutput, "json", false, "Print raw JSON instead of text")
	rootCmd.AddCommand(nextCmd)
}
