package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskdeck/taskdeck/internal/fallback"
	"github.com/taskdeck/taskdeck/pkg/models"
)

var (
	tasksStatusFilter string
	tasksJSONOutput   bool
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks from the best available data source",
	Long: `List all tasks, routed through the fallback chain: live Task Master
data when the CLI responds, otherwise cached or static data. The source
and degradation level of the data are printed alongside.

Optionally filter to a single status using --status (e.g. --status pending).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Router == nil {
			return fmt.Errorf("data router not initialized")
		}

		result := Router.GetTasks(cmd.Context())
		tasks := result.Tasks
		if tasksStatusFilter != "" {
			status := models.TaskStatus(tasksStatusFilter)
			filtered := tasks[:0]
			for _, t := range tasks {
				if t.Status == status {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}

		if tasksJSONOutput {
			return json.NewEncoder(os.Stdout).Encode(tasks)
		}

		printProvenance(result.Source, result.Level)
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}
		printTaskTable(tasks)
		return nil
	},
}

// printProvenance prints where data came from and, when degraded, the
// level's status message.
func printProvenance(source string, level fallback.Level) {
	fmt.Printf("source: %s\n", source)
	if level != fallback.LevelNone {
		info := fallback.Describe(level)
		fmt.Printf("degraded (%s): %s\n", level, info.Message)
	}
	fmt.Println()
}

// printTaskTable prints tasks as a fixed-width table.
func printTaskTable(tasks []models.Task) {
	fmt.Printf("  %-4s %-12s %-8s %s\n", "ID", "STATUS", "PRI", "TITLE")
	fmt.Printf("  %-4s %-12s %-8s %s\n", "--", "------", "---", "-----")
	for _, t := range tasks {
		title := t.Title
		if len(t.Subtasks) > 0 {
			doneCount := 0
			for _, s := range t.Subtasks {
				if s.Status == models.StatusDone {
					doneCount++
				}
			}
			title = fmt.Sprintf("%s (%d/%d subtasks)", title, doneCount, len(t.Subtasks))
		}
		if len(t.Dependencies) > 0 {
			deps := make([]string, len(t.Dependencies))
			for i, d := range t.Dependencies {
				deps[i] = fmt.Sprintf("%d", d)
			}
			title = fmt.Sprintf("%s [deps: %s]", title, strings.Join(deps, ","))
		}
		fmt.Printf("  %-4d %-12s %-8s %s\n", t.ID, t.Status, t.Priority, title)
	}
}

func init() {
	tasksCmd.Flags().StringVar(&tasksStatusFilter, "status", "", "Filter by status (pending, in-progress, review, done, deferred, cancelled, blocked)")
	tasksCmd.Flags().BoolVar(&tasksJSONOutput, "json", false, "Print raw JSON instead of a table")
	rootCmd.AddCommand(tasksCmd)
}
