package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"courtside/internal/config"
	"courtside/internal/logger"
	"courtside/internal/pipeline"
)

var cfgFile string

// rootCmd is the base command; every pipeline stage hangs off it.
var rootCmd = &cobra.Command{
	Use:   "courtside",
	Short: "Courtside generates and delivers personalized NBA takes.",
	Long: `Courtside is the content pipeline behind a personalized NBA takes
newsletter: it discovers the day's games, scrapes recap text, extracts
factual sentences, generates style-tagged takes, matches them to each
subscriber's preferences, and assembles per-user deliveries.

Each stage reads the previous stage's JSON envelope and writes its own,
so stages can be re-run and replayed independently.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.courtside.yaml)")
}

// newRunner builds a configured pipeline runner for a subcommand.
func newRunner() (*pipeline.Runner, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg), nil
}
