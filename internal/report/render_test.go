package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benchtools/pipebench/internal/config"
)

func sampleComparison() *PipelineComparison {
	return Compare("Pipeline A",
		pm(1000, 1000, 1000, 10), pm(1500, 2000, 1000, 10),
		pm(100, 100, 100, 1), pm(80, 100, 100, 1),
		config.CostConfig{Enabled: true, CreditsPerHour: 1, CostPerCreditUSD: 2.50},
		"passed (2/2 models)")
}

func TestRenderer_NoColorOutputIsPlain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	r.PrintSummary(sampleComparison())

	out := buf.String()
	assert.NotContains(t, out, "\033[")
	assert.Contains(t, out, "BENCHMARK COMPARISON: Pipeline A")
	assert.Contains(t, out, "BUILD vs QUERY TRADEOFF")
	assert.Contains(t, out, "FAVORABLE")
	assert.Contains(t, out, "execution_time increased by 50.0%")
	assert.Contains(t, out, "Verification: passed (2/2 models)")
}

func TestRenderer_ColorOutputCarriesAnsi(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true)
	r.PrintSummary(sampleComparison())
	assert.Contains(t, buf.String(), "\033[31m")
}

func TestRenderer_Aggregated(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	r.PrintAggregated([]*PipelineComparison{sampleComparison(), sampleComparison()})

	out := buf.String()
	assert.Contains(t, out, "AGGREGATED SUMMARY")
	assert.Contains(t, out, "2 pipelines compared")
}

func TestWriter_Artifacts(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, zap.NewNop())

	path, err := w.WriteReport(sampleComparison())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_pipeline_a_report.json"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var artifact Artifact
	require.NoError(t, json.Unmarshal(data, &artifact))
	assert.NotEmpty(t, artifact.RunID)
	assert.Equal(t, "Pipeline A", artifact.Comparison.PipelineName)

	aggPath, err := w.WriteAggregated([]*PipelineComparison{sampleComparison()})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(aggPath, "_all_pipelines_report.json"))

	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
