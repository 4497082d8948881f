// Package config provides configuration loading and validation for the
// benchmark harness. All recognized options live on an explicit struct and
// are validated eagerly at startup; nothing is read ad hoc by string key.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// PipelineAll selects every configured pipeline.
const PipelineAll = "all"

// PipelineSpec describes one tag-selected pipeline.
type PipelineSpec struct {
	ID          string   `mapstructure:"id" validate:"required,alpha,uppercase"`
	Name        string   `mapstructure:"name" validate:"required"`
	Tag         string   `mapstructure:"tag" validate:"required"`
	FinalModels []string `mapstructure:"final_models"`
}

// CostConfig gates the simplified warehouse cost estimate.
type CostConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	CreditsPerHour   float64 `mapstructure:"credits_per_hour" validate:"gte=0"`
	CostPerCreditUSD float64 `mapstructure:"cost_per_credit_usd" validate:"gte=0"`
}

// TimingConfig controls query-history waits. The history log populates
// asynchronously, so collection polls with backoff under a deadline rather
// than sleeping a fixed interval.
type TimingConfig struct {
	HistoryLookbackMinutes  int `mapstructure:"history_lookback_minutes" validate:"gte=0"`
	PollDeadlineSeconds     int `mapstructure:"poll_deadline_seconds" validate:"gt=0"`
	StatementTimeoutSeconds int `mapstructure:"statement_timeout_seconds" validate:"gt=0"`
}

// Config is the harness configuration, normally loaded from pipebench.yaml.
type Config struct {
	Profile      string `mapstructure:"profile" validate:"required"`
	ProfilesPath string `mapstructure:"profiles_path" validate:"required"`
	ProjectDir   string `mapstructure:"project_dir" validate:"required"`
	ResultsDir   string `mapstructure:"results_dir" validate:"required"`
	BaselinesDir string `mapstructure:"baselines_dir" validate:"required"`
	ReportsDir   string `mapstructure:"reports_dir" validate:"required"`
	DbtBinary    string `mapstructure:"dbt_binary" validate:"required"`

	Pipelines []PipelineSpec `mapstructure:"pipelines" validate:"required,min=1,dive"`
	Timing    TimingConfig   `mapstructure:"timing"`
	Cost      CostConfig     `mapstructure:"cost_estimation"`
}

// historyLookbackFloor absorbs query-history population lag: the collection
// window never starts less than this many minutes before now.
const historyLookbackFloor = 15

// Load reads the harness configuration from path and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("profiles_path", "profiles.yml")
	v.SetDefault("project_dir", ".")
	v.SetDefault("results_dir", "results")
	v.SetDefault("baselines_dir", "baselines")
	v.SetDefault("reports_dir", "results/reports")
	v.SetDefault("dbt_binary", "dbt")
	v.SetDefault("timing.history_lookback_minutes", historyLookbackFloor)
	v.SetDefault("timing.poll_deadline_seconds", 60)
	v.SetDefault("timing.statement_timeout_seconds", 120)
	v.SetDefault("cost_estimation.credits_per_hour", 1)
	v.SetDefault("cost_estimation.cost_per_credit_usd", 2.50)

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigurationError{Message: fmt.Sprintf("failed to read %s", path), Cause: err}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{Message: fmt.Sprintf("failed to parse %s", path), Cause: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration eagerly so later phases never hit a
// half-configured harness.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &ConfigurationError{Message: "invalid configuration", Cause: err}
	}
	seen := make(map[string]bool, len(c.Pipelines))
	for _, p := range c.Pipelines {
		if seen[p.ID] {
			return &ConfigurationError{Message: fmt.Sprintf("duplicate pipeline id %q", p.ID)}
		}
		seen[p.ID] = true
	}
	return nil
}

// HistoryLookback returns the configured lookback, lower-bounded at the
// 15-minute floor.
func (c *Config) HistoryLookback() int {
	if c.Timing.HistoryLookbackMinutes < historyLookbackFloor {
		return historyLookbackFloor
	}
	return c.Timing.HistoryLookbackMinutes
}

// StatementTimeout returns the per-statement warehouse timeout.
func (c *Config) StatementTimeout() time.Duration {
	return time.Duration(c.Timing.StatementTimeoutSeconds) * time.Second
}

// PollDeadline returns the bounded deadline for query-history polling.
func (c *Config) PollDeadline() time.Duration {
	return time.Duration(c.Timing.PollDeadlineSeconds) * time.Second
}

// NormalizePipelineID maps a user-supplied selector (case-insensitive) to a
// configured pipeline ID or PipelineAll. Unknown selectors fail before any
// side effects.
func (c *Config) NormalizePipelineID(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if strings.EqualFold(arg, PipelineAll) {
		return PipelineAll, nil
	}
	for _, p := range c.Pipelines {
		if strings.EqualFold(p.ID, arg) {
			return p.ID, nil
		}
	}
	valid := make([]string, 0, len(c.Pipelines)+1)
	for _, p := range c.Pipelines {
		valid = append(valid, strings.ToLower(p.ID))
	}
	valid = append(valid, PipelineAll)
	return "", &InvalidArgumentError{Argument: arg, Valid: valid}
}

// ExpandPipelines resolves a normalized selector to the pipelines to
// process, in configuration order.
func (c *Config) ExpandPipelines(id string) []PipelineSpec {
	if id == PipelineAll {
		return c.Pipelines
	}
	for _, p := range c.Pipelines {
		if p.ID == id {
			return []PipelineSpec{p}
		}
	}
	return nil
}

// DisplayName returns the human-readable name for a normalized selector.
func (c *Config) DisplayName(id string) string {
	if id == PipelineAll {
		return "All Pipelines"
	}
	for _, p := range c.Pipelines {
		if p.ID == id {
			return p.Name
		}
	}
	return "Pipeline " + id
}
