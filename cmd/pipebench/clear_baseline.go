package main

import (
	"github.com/spf13/cobra"
)

var clearBaselineCommand = &cobra.Command{
	Use:   "clear-baseline <pipeline>",
	Short: "Delete the saved baseline for a pipeline",
	Args:  cobra.ExactArgs(1),
	RunE:  clearBaselineCmd,
}

func init() {
	rootCmd.AddCommand(clearBaselineCommand)
}

func clearBaselineCmd(_ *cobra.Command, args []string) error {
	h, cleanup, err := buildHarness()
	if err != nil {
		return err
	}
	defer cleanup()

	return h.ClearBaseline(args[0])
}
