package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/benchtools/pipebench/internal/metrics"
	"github.com/benchtools/pipebench/internal/verify"
)

// ANSI escape sequences. The terminal renderer is plain enough that a color
// library would add more surface than it removes.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// Renderer writes human-readable comparison summaries.
type Renderer struct {
	out    io.Writer
	colors bool
}

// NewRenderer builds a Renderer. Colors are disabled for piped output and
// --no-color.
func NewRenderer(out io.Writer, colors bool) *Renderer {
	return &Renderer{out: out, colors: colors}
}

func (r *Renderer) paint(code, s string) string {
	if !r.colors {
		return s
	}
	return code + s + ansiReset
}

// PrintSummary renders one pipeline's comparison.
func (r *Renderer) PrintSummary(c *PipelineComparison) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.paint(ansiBold, rule))
	fmt.Fprintln(r.out, r.paint(ansiBold, "BENCHMARK COMPARISON: "+c.PipelineName))
	fmt.Fprintln(r.out, r.paint(ansiBold, rule))

	r.printMetricSection("BUILD METRICS (pipeline execution)", c.BuildComparisons)
	r.printMetricSection("QUERY METRICS (final model reads)", c.QueryComparisons)

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.paint(ansiBold, "BUILD vs QUERY TRADEOFF"))
	fmt.Fprintln(r.out, "  "+c.Tradeoff.Insight)
	fmt.Fprintln(r.out, "  "+r.paint(r.tradeoffColor(c.Tradeoff.Category), "-> "+c.Tradeoff.Recommendation))

	if warnings := c.Warnings(); len(warnings) > 0 {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, r.paint(ansiYellow, "WARNINGS"))
		for _, w := range warnings {
			fmt.Fprintln(r.out, r.paint(ansiYellow, "  ! "+w))
		}
	}

	if c.VerificationStatus != "" {
		fmt.Fprintln(r.out)
		fmt.Fprintf(r.out, "Verification: %s\n", c.VerificationStatus)
	}
	fmt.Fprintln(r.out)
}

func (r *Renderer) printMetricSection(title string, comparisons []MetricComparison) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.paint(ansiCyan, title))
	for _, comp := range comparisons {
		status := "->"
		color := ""
		switch {
		case comp.IsRegression:
			status = "^ REGRESSION"
			color = ansiRed
		case comp.ChangePct < 0:
			status = "v improved"
			color = ansiGreen
		}
		line := fmt.Sprintf("  %-24s %14.1f -> %-14.1f %+6.1f%%  %s",
			comp.MetricName, comp.BaselineValue, comp.CurrentValue, comp.ChangePct, status)
		fmt.Fprintln(r.out, r.paint(color, line))
	}
}

// PrintModelDetail renders per-model build metrics, shown with --detail.
func (r *Renderer) PrintModelDetail(m *metrics.PipelineMetrics) {
	if m == nil || len(m.ModelDetails) == 0 {
		return
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.paint(ansiCyan, "PER-MODEL DETAIL"))
	for _, model := range m.ModelDetails {
		fmt.Fprintf(r.out, "  %-40s %8dms %12dB %6d queries\n",
			model.ModelName, model.TotalExecutionTimeMs, model.TotalBytesScanned, model.QueryCount)
	}
}

// PrintVerification renders a verification summary.
func (r *Renderer) PrintVerification(s *verify.Summary) {
	if s == nil {
		return
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.paint(ansiBold, "OUTPUT VERIFICATION"))
	for _, result := range s.Results {
		if result.Passed {
			fmt.Fprintln(r.out, r.paint(ansiGreen, "  PASS "+result.ModelName))
		} else {
			fmt.Fprintln(r.out, r.paint(ansiRed, "  FAIL "+result.ModelName+": "+result.ErrorMessage))
		}
		for _, w := range result.Warnings {
			fmt.Fprintln(r.out, r.paint(ansiYellow, "       warning: "+w))
		}
	}
	fmt.Fprintf(r.out, "  %d/%d models passed\n", s.PassedModels, s.TotalModels)
}

// PrintAggregated renders the cross-pipeline rollup.
func (r *Renderer) PrintAggregated(comparisons []*PipelineComparison) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.paint(ansiBold, "AGGREGATED SUMMARY"))

	totalRegressions := 0
	for _, c := range comparisons {
		totalRegressions += len(c.Warnings())
		status := r.paint(ansiGreen, "ok")
		if c.HasRegressions() {
			status = r.paint(ansiRed, "regressions")
		}
		fmt.Fprintf(r.out, "  %-20s build %+6.1f%%  query %+6.1f%%  %s\n",
			c.PipelineName, c.Tradeoff.BuildCostChange, c.Tradeoff.QueryPerformanceChange, status)
	}
	fmt.Fprintf(r.out, "  %d pipelines compared, %d regression warnings\n",
		len(comparisons), totalRegressions)
}

func (r *Renderer) tradeoffColor(cat TradeoffCategory) string {
	switch cat {
	case TradeoffFavorable, TradeoffImprovement:
		return ansiGreen
	case TradeoffUnfavorable, TradeoffRegression:
		return ansiRed
	default:
		return ""
	}
}
