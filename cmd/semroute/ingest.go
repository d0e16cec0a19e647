package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	knowledgeuc "github.com/kailas-cloud/semroute/internal/usecase/knowledge"
)

func newIngestCmd(g *globalFlags) *cobra.Command {
	var recreate bool

	cmd := &cobra.Command{
		Use:   "ingest <file.csv>",
		Short: "Embed a CSV file into the knowledge index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := knowledgeuc.NewIngestService(a.docEmbedder, a.knowledge, a.logger).
				IngestCSV(cmd.Context(), f, filepath.Base(args[0]), recreate)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d rows (%d skipped, %d tokens)\n",
				stats.Rows, stats.Skipped, stats.Tokens)
			return nil
		},
	}
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop existing passages before ingesting")
	return cmd
}
