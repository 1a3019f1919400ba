// Package cmd wires the CLI surface of the pipeline.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"routerwatch/internal/config"
	"routerwatch/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "routerwatch",
	Short: "Unattended router-security news pipeline",
	Long: `routerwatch harvests router-security coverage from Google search,
stores deduplicated items in Postgres and transcribes each pending
item into an external intake form.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"path to the config file (env ROUTERWATCH_* overrides apply)")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger every subcommand
// shares.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}
