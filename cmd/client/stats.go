package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"shipnotify/internal/client"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show notification counters from the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := accessToken()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		stats, err := client.NewAPI(cfg.Realtime.BaseURL, token, cfg.Realtime.SyncLimit).Stats(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("total %d, unread %d\n", stats.TotalCount, stats.UnreadCount)
		printCounts("by type", stats.CountByType)
		printCounts("by priority", stats.CountByPriority)
		return nil
	},
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println(title + ":")
	for _, k := range keys {
		fmt.Printf("  %-24s %d\n", k, counts[k])
	}
}
