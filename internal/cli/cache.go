package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the read cache",
	}
	cmd.AddCommand(newCacheStatsCmd(a), newCacheClearCmd(a))
	return cmd
}

func newCacheStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache size, keys, and last update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats := a.store.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entries:     %d\n", stats.Size)
			fmt.Fprintf(out, "ttl:         %s\n", a.store.TTL())
			if !stats.LastUpdate.IsZero() {
				fmt.Fprintf(out, "last update: %s\n", stats.LastUpdate.Format("2006-01-02 15:04:05"))
			}
			sort.Strings(stats.Keys)
			for _, key := range stats.Keys {
				fmt.Fprintf(out, "  %s\n", key)
			}
			return nil
		},
	}
}

func newCacheClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached result set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.store.InvalidateAll()
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}
}
