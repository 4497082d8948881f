package main

import (
	"context"

	"github.com/spf13/cobra"
)

var compareCommand = &cobra.Command{
	Use:   "compare <pipeline>",
	Short: "Compare the latest run against the saved baseline",
	Long: `Compares the most recent benchmark results against the saved baseline:
build-time metrics, query-time metrics, the build-vs-query tradeoff and
estimated cost. Writes JSON reports under the reports directory. Regressions
are reported but do not fail the command.`,
	Args: cobra.ExactArgs(1),
	RunE: compareCmd,
}

var (
	compareDetail  bool
	compareNoColor bool
)

func init() {
	compareCommand.Flags().BoolVar(&compareDetail, "detail", false, "Show per-model metric breakdown")
	compareCommand.Flags().BoolVar(&compareNoColor, "no-color", false, "Disable colored output")
	rootCmd.AddCommand(compareCommand)
}

func compareCmd(_ *cobra.Command, args []string) error {
	h, cleanup, err := buildHarness()
	if err != nil {
		return err
	}
	defer cleanup()

	return h.Compare(context.Background(), args[0], compareDetail, compareNoColor)
}
