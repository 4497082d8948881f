package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/benchtools/pipebench/internal/harness"
)

var runCommand = &cobra.Command{
	Use:   "run <pipeline>",
	Short: "Run a pipeline benchmark: execute, collect metrics, verify output",
	Long: `Executes the selected pipeline (a, b, c, ... or all) with dbt, collects
build-time metrics from the warehouse query history, measures query-time
performance of the pipeline's final models and verifies output correctness
against the saved baseline.`,
	Args: cobra.ExactArgs(1),
	RunE: runBenchmarkCmd,
}

var (
	runNoVerify    bool
	runCompileOnly bool
)

func init() {
	runCommand.Flags().BoolVar(&runNoVerify, "no-verify", false, "Skip output correctness verification")
	runCommand.Flags().BoolVar(&runCompileOnly, "compile-only", false, "Compile the pipeline without executing models")
	rootCmd.AddCommand(runCommand)
}

func runBenchmarkCmd(_ *cobra.Command, args []string) error {
	h, cleanup, err := buildHarness()
	if err != nil {
		return err
	}
	defer cleanup()

	return h.Run(context.Background(), harness.RunOptions{
		Selector:    args[0],
		NoVerify:    runNoVerify,
		CompileOnly: runCompileOnly,
	})
}
