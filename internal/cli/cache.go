package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the offline cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Cache == nil {
			return fmt.Errorf("cache store not initialized")
		}
		stats := Cache.Stats()
		fmt.Printf("entries:      %d\n", stats.Entries)
		fmt.Printf("size:         %d / %d bytes\n", stats.TotalSize, stats.MaxSize)
		fmt.Printf("hits:         %d\n", stats.Hits)
		fmt.Printf("misses:       %d\n", stats.Misses)
		fmt.Printf("hit rate:     %.1f%%\n", stats.HitRate*100)
		fmt.Printf("evictions:    %d\n", stats.Evictions)
		fmt.Printf("expirations:  %d\n", stats.Expirations)
		if stats.AvgHitLatency > 0 {
			fmt.Printf("avg hit time: %s\n", stats.AvgHitLatency)
		}
		return nil
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Cache == nil {
			return fmt.Errorf("cache store not initialized")
		}
		removed := Cache.Cleanup()
		fmt.Printf("Removed %d expired entries.\n", removed)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Cache == nil {
			return fmt.Errorf("cache store not initialized")
		}
		if err := Cache.Clear(); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Println("Cache cleared.")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
