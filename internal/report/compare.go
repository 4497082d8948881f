// Package report compares benchmark runs to their baseline, analyzes the
// build-vs-query tradeoff and renders the results.
package report

import (
	"fmt"
	"math"
	"time"

	"github.com/benchtools/pipebench/internal/config"
	"github.com/benchtools/pipebench/internal/metrics"
)

// MetricComparison is one metric's baseline-vs-current delta.
type MetricComparison struct {
	MetricName    string  `json:"metric_name"`
	MetricKey     string  `json:"metric_key"`
	BaselineValue float64 `json:"baseline_value"`
	CurrentValue  float64 `json:"current_value"`
	ChangePct     float64 `json:"change_pct"`
	IsRegression  bool    `json:"is_regression"`
}

// TradeoffCategory classifies the build-vs-query pattern.
type TradeoffCategory string

const (
	TradeoffFavorable   TradeoffCategory = "FAVORABLE"
	TradeoffUnfavorable TradeoffCategory = "UNFAVORABLE"
	TradeoffRegression  TradeoffCategory = "REGRESSION"
	TradeoffImprovement TradeoffCategory = "IMPROVEMENT"
	TradeoffNeutral     TradeoffCategory = "NEUTRAL"
)

// Tradeoff captures the relationship between build-time cost and query-time
// performance. Views are cheap to build but slow to query; tables the
// reverse, so the two execution-time deltas are read together.
type Tradeoff struct {
	Insight                string           `json:"build_vs_query_insight"`
	BuildCostChange        float64          `json:"build_cost_change"`
	QueryPerformanceChange float64          `json:"query_performance_change"`
	Recommendation         string           `json:"recommendation"`
	Category               TradeoffCategory `json:"category"`
}

// PipelineComparison is the full comparison of one pipeline run against its
// baseline.
type PipelineComparison struct {
	PipelineName       string             `json:"pipeline"`
	Timestamp          time.Time          `json:"timestamp"`
	HasBaseline        bool               `json:"has_baseline"`
	BuildComparisons   []MetricComparison `json:"build_comparisons"`
	QueryComparisons   []MetricComparison `json:"query_comparisons"`
	BuildWarnings      []string           `json:"build_warnings"`
	QueryWarnings      []string           `json:"query_warnings"`
	Tradeoff           Tradeoff           `json:"tradeoff_analysis"`
	VerificationStatus string             `json:"verification_status,omitempty"`
}

// Warnings returns the combined build and query regression warnings.
func (c *PipelineComparison) Warnings() []string {
	out := make([]string, 0, len(c.BuildWarnings)+len(c.QueryWarnings))
	out = append(out, c.BuildWarnings...)
	out = append(out, c.QueryWarnings...)
	return out
}

// HasRegressions reports whether any compared metric regressed.
func (c *PipelineComparison) HasRegressions() bool {
	for _, comp := range c.BuildComparisons {
		if comp.IsRegression {
			return true
		}
	}
	for _, comp := range c.QueryComparisons {
		if comp.IsRegression {
			return true
		}
	}
	return false
}

// PercentChange is (current-baseline)/|baseline|*100 rounded to one decimal.
// A zero baseline yields 0: there is no meaningful reference point.
func PercentChange(baseline, current float64) float64 {
	if baseline == 0 {
		return 0
	}
	change := (current - baseline) / math.Abs(baseline) * 100
	return math.Round(change*10) / 10
}

// regressionKeys are the metrics where an increase means worse performance.
var regressionKeys = map[string]bool{
	"execution_time_change_pct":     true,
	"bytes_scanned_change_pct":      true,
	"partitions_scanned_change_pct": true,
	"estimated_cost_change_pct":     true,
}

func isRegression(metricKey string, changePct float64) bool {
	return regressionKeys[metricKey] && changePct > 0
}

// EstimateCost converts execution time to an estimated USD cost with the
// warehouse's 60-second minimum billing window. Returns 0 when estimation is
// disabled.
func EstimateCost(executionTimeMs float64, cost config.CostConfig) float64 {
	if !cost.Enabled {
		return 0
	}
	billableSeconds := math.Max(60, executionTimeMs/1000)
	credits := billableSeconds / 3600 * cost.CreditsPerHour
	return math.Round(credits*cost.CostPerCreditUSD*10000) / 10000
}

// compareMetricSet compares one metric set (build or query) and accumulates
// regression warnings.
func compareMetricSet(setName string, baseline, current *metrics.PipelineMetrics, cost config.CostConfig) ([]MetricComparison, []string) {
	var comparisons []MetricComparison
	var warnings []string

	add := func(name, key string, baseVal, curVal float64, regressionKey string) MetricComparison {
		change := PercentChange(baseVal, curVal)
		comp := MetricComparison{
			MetricName:    setName + " " + name,
			MetricKey:     key,
			BaselineValue: baseVal,
			CurrentValue:  curVal,
			ChangePct:     change,
			IsRegression:  isRegression(regressionKey, change),
		}
		comparisons = append(comparisons, comp)
		return comp
	}

	exec := add("Execution Time", "execution_time_change_pct",
		float64(baseline.TotalExecutionTimeMs), float64(current.TotalExecutionTimeMs),
		"execution_time_change_pct")
	if exec.IsRegression {
		warnings = append(warnings, fmt.Sprintf("execution_time increased by %.1f%%", exec.ChangePct))
	}

	bytes := add("Bytes Scanned", "bytes_scanned_change_pct",
		float64(baseline.TotalBytesScanned), float64(current.TotalBytesScanned),
		"bytes_scanned_change_pct")
	if bytes.IsRegression {
		warnings = append(warnings, fmt.Sprintf("bytes_scanned increased by %.1f%%", bytes.ChangePct))
	}

	partitions := add("Partitions Scanned", "partitions_scanned_change_pct",
		float64(baseline.TotalPartitionsScanned), float64(current.TotalPartitionsScanned),
		"partitions_scanned_change_pct")
	if partitions.IsRegression {
		warnings = append(warnings, fmt.Sprintf("partitions_scanned increased by %.1f%%", partitions.ChangePct))
	}

	// Rows produced is informational only.
	add("Rows Produced", "rows_produced_change_pct",
		float64(baseline.TotalRowsProduced), float64(current.TotalRowsProduced),
		"rows_produced_change_pct")

	if cost.Enabled {
		baseCost := EstimateCost(float64(baseline.TotalExecutionTimeMs), cost)
		curCost := EstimateCost(float64(current.TotalExecutionTimeMs), cost)
		comp := add("Estimated Cost", "estimated_cost_change_pct", baseCost, curCost,
			"estimated_cost_change_pct")
		if comp.IsRegression {
			warnings = append(warnings, fmt.Sprintf(
				"estimated_cost increased by %.1f%% ($%.4f -> $%.4f)",
				comp.ChangePct, baseCost, curCost))
		}
	}

	return comparisons, warnings
}

// Compare builds the full baseline-vs-current comparison for one pipeline.
func Compare(pipelineName string, baselineBuild, currentBuild, baselineQuery, currentQuery *metrics.PipelineMetrics, cost config.CostConfig, verificationStatus string) *PipelineComparison {
	buildComparisons, buildWarnings := compareMetricSet("Build", baselineBuild, currentBuild, cost)
	queryComparisons, queryWarnings := compareMetricSet("Query", baselineQuery, currentQuery, cost)

	return &PipelineComparison{
		PipelineName:       pipelineName,
		Timestamp:          time.Now().UTC(),
		HasBaseline:        true,
		BuildComparisons:   buildComparisons,
		QueryComparisons:   queryComparisons,
		BuildWarnings:      buildWarnings,
		QueryWarnings:      queryWarnings,
		Tradeoff:           analyzeTradeoff(buildComparisons, queryComparisons),
		VerificationStatus: verificationStatus,
	}
}

// analyzeTradeoff reads the two execution-time deltas together and
// classifies the pattern.
func analyzeTradeoff(build, query []MetricComparison) Tradeoff {
	var buildChange, queryChange float64
	for _, comp := range build {
		if comp.MetricKey == "execution_time_change_pct" {
			buildChange = comp.ChangePct
		}
	}
	for _, comp := range query {
		if comp.MetricKey == "execution_time_change_pct" {
			queryChange = comp.ChangePct
		}
	}

	t := Tradeoff{BuildCostChange: buildChange, QueryPerformanceChange: queryChange}
	switch {
	case buildChange > 0 && queryChange < 0:
		t.Category = TradeoffFavorable
		t.Insight = fmt.Sprintf(
			"Build cost increased %+.1f%%, but query performance improved %.1f%% (faster queries)",
			buildChange, queryChange)
		t.Recommendation = "FAVORABLE: Higher build cost for faster queries"
	case buildChange < 0 && queryChange > 0:
		t.Category = TradeoffUnfavorable
		t.Insight = fmt.Sprintf(
			"Build cost decreased %.1f%% (faster builds), but query performance regressed %+.1f%% (slower queries)",
			buildChange, queryChange)
		t.Recommendation = "UNFAVORABLE: Lower build cost at cost of slower queries"
	case buildChange > 0 && queryChange > 0:
		t.Category = TradeoffRegression
		t.Insight = fmt.Sprintf(
			"Both build %+.1f%% and queries %+.1f%% got slower", buildChange, queryChange)
		t.Recommendation = "REGRESSION: Both build and query performance degraded"
	case buildChange < 0 && queryChange < 0:
		t.Category = TradeoffImprovement
		t.Insight = fmt.Sprintf(
			"Both build %.1f%% and queries %.1f%% got faster", buildChange, queryChange)
		t.Recommendation = "IMPROVEMENT: Both build and query performance improved"
	default:
		t.Category = TradeoffNeutral
		t.Insight = "Build and query metrics show minimal change"
		t.Recommendation = "NEUTRAL: No significant performance changes"
	}
	return t
}
