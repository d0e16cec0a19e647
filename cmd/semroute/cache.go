package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the response cache",
	}
	cmd.AddCommand(newCacheStatsCmd(g), newCachePruneCmd(g))
	return cmd
}

func newCacheStatsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the number of cached responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.cache.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("count entries: %w", err)
			}
			passages, err := a.knowledge.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("count passages: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "driver:   %s\n", a.cfg.Cache.Driver)
			fmt.Fprintf(out, "entries:  %d\n", n)
			fmt.Fprintf(out, "passages: %d\n", passages)
			return nil
		},
	}
}

func newCachePruneCmd(g *globalFlags) *cobra.Command {
	var maxEntries int64

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Evict the least used entries above --max-entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxEntries <= 0 {
				return fmt.Errorf("--max-entries must be positive")
			}
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.close()

			removed, err := a.cache.Prune(cmd.Context(), maxEntries)
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return nil
		},
	}
	cmd.Flags().Int64Var(&maxEntries, "max-entries", 10000, "entries to keep")
	return cmd
}
