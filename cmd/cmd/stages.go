package cmd

import (
	"github.com/spf13/cobra"

	"courtside/internal/pipeline"
)

var withSend bool

func stageCommand(use, short string, run func(*pipeline.Runner) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner()
			if err != nil {
				return err
			}
			return run(runner)
		},
	}
}

func init() {
	rootCmd.AddCommand(
		stageCommand("discover", "Discover today's games from the scoreboard", (*pipeline.Runner).Discover),
		stageCommand("recaps", "Scrape recap text for discovered games", (*pipeline.Runner).Recaps),
		stageCommand("facts", "Extract factual sentences from recaps", (*pipeline.Runner).Facts),
		stageCommand("takes", "Generate style-tagged takes for demanded games", (*pipeline.Runner).Takes),
		stageCommand("personalize", "Assemble per-subscriber delivery bundles", (*pipeline.Runner).Personalize),
		stageCommand("send", "Send assembled deliveries via the email transport", (*pipeline.Runner).Send),
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline in stage order",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner()
			if err != nil {
				return err
			}
			return runner.RunAll(withSend)
		},
	}
	runCmd.Flags().BoolVar(&withSend, "send", false, "also send deliveries after personalization")
	rootCmd.AddCommand(runCmd)
}
