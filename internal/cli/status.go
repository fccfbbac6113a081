package cli

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show resilience diagnostics",
	Long: `Show the health of the layer between the dashboard and Task Master:
whether the CLI binary resolves, connectivity, circuit breaker state,
degradation level, data source availability, cache statistics, and
per-operation success rates.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// CLI binary resolution.
		binary := "task-master"
		if Config != nil && Config.CLI.Binary != "" {
			binary = Config.CLI.Binary
		}
		if path, err := exec.LookPath(binary); err == nil {
			fmt.Printf("cli binary:    %s (%s)\n", binary, path)
		} else {
			fmt.Printf("cli binary:    %s (NOT FOUND on PATH)\n", binary)
		}

		// Connectivity.
		if Probe != nil {
			status := Probe.Check(cmd.Context())
			if status.Online {
				fmt.Printf("connectivity:  online (%s)\n", status.Latency.Round(time.Millisecond))
			} else {
				fmt.Printf("connectivity:  offline (%s)\n", status.Detail)
			}
		}

		// Circuit breaker.
		if Runner != nil {
			fmt.Printf("breaker:       %s\n", Runner.BreakerState())
		}

		// Degradation level and sources.
		if Router != nil {
			info := Router.LevelInfo()
			fmt.Printf("degradation:   %s - %s\n", info.Level, info.Message)
			fmt.Println("\nData sources:")
			for _, src := range Router.Sources() {
				state := "available"
				if !src.Available {
					state = "UNAVAILABLE"
				}
				checked := "never checked"
				if !src.LastCheckedAt.IsZero() {
					checked = "checked " + src.LastCheckedAt.Format("15:04:05")
				}
				fmt.Printf("  %-16s priority %d  %-12s %s\n", src.Name, src.Priority, state, checked)
			}
		}

		// Cache statistics.
		if Cache != nil {
			stats := Cache.Stats()
			fmt.Println("\nCache:")
			fmt.Printf("  entries:     %d (%d / %d bytes)\n", stats.Entries, stats.TotalSize, stats.MaxSize)
			fmt.Printf("  hit rate:    %.1f%% (%d hits, %d misses)\n", stats.HitRate*100, stats.Hits, stats.Misses)
			fmt.Printf("  evictions:   %d, expirations: %d\n", stats.Evictions, stats.Expirations)
		}

		// Error counts.
		if Classifier != nil {
			stats := Classifier.Stats()
			if stats.Total > 0 {
				fmt.Println("\nErrors:")
				counts := make(map[string]int, len(stats.ByKind))
				kinds := make([]string, 0, len(stats.ByKind))
				for kind, count := range stats.ByKind {
					counts[string(kind)] = count
					kinds = append(kinds, string(kind))
				}
				sort.Strings(kinds)
				parts := make([]string, 0, len(kinds))
				for _, kind := range kinds {
					parts = append(parts, fmt.Sprintf("%s=%d", kind, counts[kind]))
				}
				fmt.Printf("  %s\n", strings.Join(parts, ", "))
			}
		}

		// Operation success rates.
		if Runner != nil {
			ids := Runner.OperationIDs()
			sort.Strings(ids)
			if len(ids) > 0 {
				fmt.Println("\nOperations:")
				for _, id := range ids {
					op := Runner.Stats(id)
					fmt.Printf("  %-24s %3d attempts, %.0f%% success\n",
						op.OperationID, op.Attempts, op.SuccessRate*100)
				}
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
