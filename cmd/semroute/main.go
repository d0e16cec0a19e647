package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/semroute/internal/config"
	"github.com/kailas-cloud/semroute/internal/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	env        string
	configPath string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "semroute",
		Short:         "Semantic response cache with relevance-gated routing",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", g.envFile, err)
			}
			if g.env == "" {
				g.env = config.GetEnv()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&g.env, "env", "", "environment name selecting config/<env>.yaml (default $ENV or local)")
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "explicit config file path")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newServeCmd(g),
		newAskCmd(g),
		newIngestCmd(g),
		newCacheCmd(g),
	)
	return root
}

func (g *globalFlags) load() (config.Config, error) {
	if g.configPath != "" {
		return config.LoadFile(g.configPath)
	}
	return config.Load(g.env)
}
