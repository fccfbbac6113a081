package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reportJSONOutput bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the task complexity report",
	Long: `Show Task Master's complexity analysis for the current task set.
Complexity scores cannot be derived from fallback data, so when no
source can produce a report an empty placeholder is returned.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Router == nil {
			return fmt.Errorf("data router not initialized")
		}

		result := Router.GetComplexityReport(cmd.Context())

		if reportJSONOutput {
			return json.NewEncoder(os.Stdout).Encode(result.Report)
		}

		printProvenance(result.Source, result.Level)
		report := result.Report
		if len(report.Tasks) == 0 {
			fmt.Println("No complexity data available.")
			return nil
		}

		if !report.GeneratedAt.IsZero() {
			fmt.Printf("Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04 UTC"))
		}
		fmt.Printf("  %-4s %-6s %-9s %s\n", "ID", "SCORE", "SUBTASKS", "TITLE")
		fmt.Printf("  %-4s %-6s %-9s %s\n", "--", "-----", "--------", "-----")
		for _, t := range report.Tasks {
			fmt.Printf("  %-4d %-6.1f %-9d %s\n", t.TaskID, t.Score, t.RecommendedSubtasks, t.Title)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSONOutput, "json", false, "Print raw JSON instead of a table")
	rootCmd.AddCommand(reportCmd)
}
