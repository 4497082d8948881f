package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipebench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `
profile: analytics
project_dir: .
pipelines:
  - id: A
    name: Pipeline A
    tag: pipeline_a
    final_models: [fact_portfolio_summary]
  - id: B
    name: Pipeline B
    tag: pipeline_b
  - id: C
    name: Pipeline C
    tag: pipeline_c
timing:
  history_lookback_minutes: 10
  poll_deadline_seconds: 45
cost_estimation:
  enabled: true
  credits_per_hour: 2
  cost_per_credit_usd: 3.0
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "analytics", cfg.Profile)
	assert.Len(t, cfg.Pipelines, 3)
	assert.Equal(t, "pipeline_a", cfg.Pipelines[0].Tag)
	assert.Equal(t, []string{"fact_portfolio_summary"}, cfg.Pipelines[0].FinalModels)
	assert.True(t, cfg.Cost.Enabled)
	assert.Equal(t, 2.0, cfg.Cost.CreditsPerHour)

	// Defaults fill unset values.
	assert.Equal(t, "dbt", cfg.DbtBinary)
	assert.Equal(t, "results", cfg.ResultsDir)
	assert.Equal(t, 120, cfg.Timing.StatementTimeoutSeconds)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoad_NoPipelines(t *testing.T) {
	_, err := Load(writeConfig(t, "profile: analytics\n"))
	require.Error(t, err)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidate_DuplicatePipelineID(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	cfg.Pipelines = append(cfg.Pipelines, PipelineSpec{ID: "A", Name: "Again", Tag: "again"})
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate pipeline id")
}

func TestHistoryLookback_Floor(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	// Configured 10 is below the 15-minute floor.
	assert.Equal(t, 15, cfg.HistoryLookback())

	cfg.Timing.HistoryLookbackMinutes = 30
	assert.Equal(t, 30, cfg.HistoryLookback())
}

func TestNormalizePipelineID(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	for _, arg := range []string{"a", "A", " a "} {
		id, err := cfg.NormalizePipelineID(arg)
		require.NoError(t, err)
		assert.Equal(t, "A", id)
	}

	id, err := cfg.NormalizePipelineID("ALL")
	require.NoError(t, err)
	assert.Equal(t, PipelineAll, id)

	_, err = cfg.NormalizePipelineID("x")
	require.Error(t, err)
	var invErr *InvalidArgumentError
	require.ErrorAs(t, err, &invErr)
	assert.Contains(t, err.Error(), "invalid pipeline")
}

func TestExpandPipelines(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	all := cfg.ExpandPipelines(PipelineAll)
	require.Len(t, all, 3)
	assert.Equal(t, "A", all[0].ID)

	one := cfg.ExpandPipelines("B")
	require.Len(t, one, 1)
	assert.Equal(t, "Pipeline B", one[0].Name)
}

func TestDisplayName(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "Pipeline A", cfg.DisplayName("A"))
	assert.Equal(t, "All Pipelines", cfg.DisplayName(PipelineAll))
}
