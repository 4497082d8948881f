// Package main provides the entry point for the pipebench benchmark CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/benchtools/pipebench/internal/config"
	"github.com/benchtools/pipebench/internal/harness"
)

// Exit codes. Verification and argument failures get their own codes so CI
// can tell correctness problems from infrastructure problems.
const (
	exitSuccess            = 0
	exitBenchmarkFailed    = 1
	exitVerificationFailed = 2
	exitInvalidArguments   = 3
)

var rootCmd = &cobra.Command{
	Use:   "pipebench",
	Short: "Benchmark harness for dbt pipelines on Snowflake",
	Long: `pipebench executes tag-selected dbt pipelines, collects warehouse
performance telemetry, verifies output correctness against saved baselines
and compares runs for regressions and build-vs-query tradeoffs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configPath string
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "pipebench.yaml", "Path to harness configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
	os.Exit(exitSuccess)
}

func exitCodeFor(err error) int {
	var invalidErr *config.InvalidArgumentError
	if errors.As(err, &invalidErr) {
		return exitInvalidArguments
	}
	var existsErr *harness.BaselineExistsError
	if errors.As(err, &existsErr) {
		return exitInvalidArguments
	}
	var verifyErr *harness.VerificationFailedError
	if errors.As(err, &verifyErr) {
		return exitVerificationFailed
	}
	return exitBenchmarkFailed
}
