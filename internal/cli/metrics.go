package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display resilience metrics",
	Long: `Display aggregated resilience metrics derived from the event log.

Metrics include error counts by kind and severity, retry and fallback
counts, circuit breaker transitions, cache hit rates, and degradation
level changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		// Table format.
		fmt.Printf("Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Printf("  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Printf("  %-24s %d\n", "Retries:", metrics.Retries)
		fmt.Printf("  %-24s %d\n", "Fallback uses:", metrics.FallbackUses)
		fmt.Printf("  %-24s %d (opened %d times)\n", "Breaker transitions:", metrics.BreakerTransitions, metrics.BreakerOpens)
		fmt.Printf("  %-24s %.1f%% (%d hits, %d misses)\n", "Cache hit rate:", metrics.CacheHitRate*100, metrics.CacheHits, metrics.CacheMisses)
		fmt.Printf("  %-24s %d\n", "Cache evictions:", metrics.CacheEvictions)
		fmt.Printf("  %-24s %d\n", "Degradation changes:", metrics.DegradationChanges)
		fmt.Printf("  %-24s %d\n", "Offline activations:", metrics.OfflineActivations)

		if len(metrics.ErrorsByKind) > 0 {
			fmt.Println("\n  Errors by kind:")
			for kind, count := range metrics.ErrorsByKind {
				fmt.Printf("    %-20s %d\n", kind+":", count)
			}
		}

		if len(metrics.ErrorsBySeverity) > 0 {
			fmt.Println("\n  Errors by severity:")
			for severity, count := range metrics.ErrorsBySeverity {
				fmt.Printf("    %-20s %d\n", severity+":", count)
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Printf("\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Printf("  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
