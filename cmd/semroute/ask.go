package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <query>",
		Short: "Route a single query and print the decision",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.close()

			d := a.services().router.Route(cmd.Context(), strings.Join(args, " "))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source:     %s\n", d.Source())
			fmt.Fprintf(out, "confidence: %.3f\n", d.Confidence())
			if tags := d.MatchedTags(); len(tags) > 0 {
				fmt.Fprintf(out, "tags:       %s\n", strings.Join(tags, ", "))
			}
			if s := d.Suggestions(); len(s) > 0 {
				fmt.Fprintf(out, "suggest:    %s\n", strings.Join(s, ", "))
			}
			fmt.Fprintf(out, "\n%s\n", d.Text())
			return nil
		},
	}
}
