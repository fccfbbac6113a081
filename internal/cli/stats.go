package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskdeck/taskdeck/pkg/models"
)

var statsJSONOutput bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task statistics",
	Long: `Show task counts by status and priority plus the overall completion
percentage, routed through the fallback chain like every other read.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Router == nil {
			return fmt.Errorf("data router not initialized")
		}

		result := Router.GetStats(cmd.Context())

		if statsJSONOutput {
			return json.NewEncoder(os.Stdout).Encode(result.Stats)
		}

		printProvenance(result.Source, result.Level)
		stats := result.Stats
		fmt.Printf("Total tasks: %d (%.1f%% complete)\n\n", stats.Total, stats.CompletionPercent)

		statusOrder := []models.TaskStatus{
			models.StatusInProgress,
			models.StatusBlocked,
			models.StatusReview,
			models.StatusPending,
			models.StatusDeferred,
			models.StatusDone,
			models.StatusCancelled,
		}
		fmt.Println("By status:")
		for _, status := range statusOrder {
			if count := stats.ByStatus[status]; count > 0 {
				fmt.Printf("  %-12s %d\n", status, count)
			}
		}

		fmt.Println("\nBy priority:")
		for _, pri := range []models.Priority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow} {
			if count := stats.ByPriority[pri]; count > 0 {
				fmt.Printf("  %-12s %d\n", pri, count)
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSONOutput, "json", false, "Print raw JSON instead of text")
	rootCmd.AddCommand(statsCmd)
}
