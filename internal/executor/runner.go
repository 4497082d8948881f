// Package executor runs tag-selected dbt pipelines as subprocesses and
// reports which models they built.
package executor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/benchtools/pipebench/internal/config"
)

// PipelineRun records one pipeline execution.
type PipelineRun struct {
	PipelineID     string    `json:"pipeline_id"`
	Success        bool      `json:"success"`
	ExecutedModels []string  `json:"executed_models"`
	FQNModels      []string  `json:"fqn_models"`
	StartTimestamp time.Time `json:"start_timestamp"`
	EndTimestamp   time.Time `json:"end_timestamp"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CompileOnly    bool      `json:"compile_only"`
}

// Elapsed is the wall-clock duration of the execution.
func (r *PipelineRun) Elapsed() time.Duration {
	return r.EndTimestamp.Sub(r.StartTimestamp)
}

// Runner invokes the build tool for one pipeline at a time.
type Runner struct {
	dbtBinary  string
	projectDir string
	database   string
	schema     string
	log        *zap.Logger
}

// NewRunner builds a Runner. Database and schema come from the resolved
// credentials and feed fully-qualified model names.
func NewRunner(cfg *config.Config, creds *config.Credentials, log *zap.Logger) *Runner {
	return &Runner{
		dbtBinary:  cfg.DbtBinary,
		projectDir: cfg.ProjectDir,
		database:   creds.Database,
		schema:     creds.Schema,
		log:        log,
	}
}

// Run executes one pipeline: compile first, then run unless compileOnly.
// The returned PipelineRun is populated even on failure so callers can
// persist a failed result; the error carries the phase and tool output.
func (r *Runner) Run(ctx context.Context, spec config.PipelineSpec, compileOnly bool) (*PipelineRun, error) {
	run := &PipelineRun{
		PipelineID:     spec.ID,
		CompileOnly:    compileOnly,
		StartTimestamp: time.Now().UTC(),
	}
	selector := "tag:" + spec.Tag

	if err := r.invoke(ctx, run, "compile", selector); err != nil {
		return run, err
	}

	models, err := TaggedModels(r.projectDir, spec.Tag)
	if err != nil {
		run.EndTimestamp = time.Now().UTC()
		run.ErrorMessage = err.Error()
		return run, err
	}
	run.ExecutedModels = models
	run.FQNModels = r.qualify(models)

	if compileOnly {
		run.Success = true
		run.EndTimestamp = time.Now().UTC()
		r.log.Info("pipeline compiled",
			zap.String("pipeline", spec.ID),
			zap.Int("models", len(models)))
		return run, nil
	}

	if err := r.invoke(ctx, run, "run", selector); err != nil {
		return run, err
	}

	run.Success = true
	run.EndTimestamp = time.Now().UTC()
	r.log.Info("pipeline executed",
		zap.String("pipeline", spec.ID),
		zap.Int("models", len(models)),
		zap.Duration("elapsed", run.Elapsed()))
	return run, nil
}

func (r *Runner) invoke(ctx context.Context, run *PipelineRun, phase, selector string) error {
	args := []string{phase, "--select", selector}
	r.log.Debug("invoking build tool",
		zap.String("binary", r.dbtBinary),
		zap.Strings("args", args),
		zap.String("dir", r.projectDir))

	cmd := exec.CommandContext(ctx, r.dbtBinary, args...)
	cmd.Dir = r.projectDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		run.EndTimestamp = time.Now().UTC()
		execErr := &ExecutionError{Phase: phase, Output: string(out), Cause: err}
		run.ErrorMessage = fmt.Sprintf("%s: %s", execErr.Error(), tail(string(out), 500))
		r.log.Error("build tool failed",
			zap.String("phase", phase),
			zap.Error(err))
		return execErr
	}
	return nil
}

// qualify maps model names to DATABASE.SCHEMA.NAME with the name uppercased,
// matching how the warehouse stores unquoted identifiers.
func (r *Runner) qualify(models []string) []string {
	fqns := make([]string, len(models))
	for i, m := range models {
		fqns[i] = fmt.Sprintf("%s.%s.%s", r.database, r.schema, strings.ToUpper(m))
	}
	return fqns
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
