package main

import (
	"context"

	"github.com/spf13/cobra"
)

var saveBaselineCommand = &cobra.Command{
	Use:   "save-baseline <pipeline>",
	Short: "Save the latest run results as the pipeline's baseline",
	Long: `Snapshots the most recent benchmark results (build metrics, query metrics
and output fingerprints) as the baseline for future comparisons. Refuses to
overwrite an existing baseline unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: saveBaselineCmd,
}

var saveBaselineForce bool

func init() {
	saveBaselineCommand.Flags().BoolVar(&saveBaselineForce, "force", false, "Overwrite an existing baseline")
	rootCmd.AddCommand(saveBaselineCommand)
}

func saveBaselineCmd(_ *cobra.Command, args []string) error {
	h, cleanup, err := buildHarness()
	if err != nil {
		return err
	}
	defer cleanup()

	return h.SaveBaseline(context.Background(), args[0], saveBaselineForce)
}
