// Package harness orchestrates the benchmark commands: run a pipeline and
// collect its telemetry, snapshot baselines, and compare runs to them.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benchtools/pipebench/internal/baseline"
	"github.com/benchtools/pipebench/internal/config"
	"github.com/benchtools/pipebench/internal/executor"
	"github.com/benchtools/pipebench/internal/metrics"
	"github.com/benchtools/pipebench/internal/report"
	"github.com/benchtools/pipebench/internal/verify"
	"github.com/benchtools/pipebench/internal/warehouse"
)

// RunOptions control the `run` command.
type RunOptions struct {
	Selector    string
	NoVerify    bool
	CompileOnly bool
}

// Harness wires the benchmark phases together. Pipelines run strictly one at
// a time so their query histories do not interleave.
type Harness struct {
	cfg   *config.Config
	creds *config.Credentials
	log   *zap.Logger
	out   io.Writer
}

// New builds a Harness.
func New(cfg *config.Config, creds *config.Credentials, log *zap.Logger, out io.Writer) *Harness {
	return &Harness{cfg: cfg, creds: creds, log: log, out: out}
}

// Run executes the full benchmark for the selected pipelines: execute,
// collect build and query metrics, verify output, persist results.
func (h *Harness) Run(ctx context.Context, opts RunOptions) error {
	id, err := h.cfg.NormalizePipelineID(opts.Selector)
	if err != nil {
		return err
	}
	pipelines := h.cfg.ExpandPipelines(id)

	runner := executor.NewRunner(h.cfg, h.creds, h.log)
	store := baseline.NewStore(h.cfg.BaselinesDir, h.log)

	for _, spec := range pipelines {
		if err := h.runOne(ctx, runner, store, spec, opts); err != nil {
			return err
		}
	}
	fmt.Fprintf(h.out, "Benchmark completed successfully for %s\n", h.cfg.DisplayName(id))
	return nil
}

func (h *Harness) runOne(ctx context.Context, runner *executor.Runner, store *baseline.Store, spec config.PipelineSpec, opts RunOptions) error {
	h.log.Info("starting benchmark", zap.String("pipeline", spec.ID))
	fmt.Fprintf(h.out, "Executing pipeline %s (%s)...\n", spec.ID, spec.Name)

	run, err := runner.Run(ctx, spec, opts.CompileOnly)
	if err != nil {
		return fmt.Errorf("pipeline %s execution failed: %w", spec.ID, err)
	}
	fmt.Fprintf(h.out, "  Pipeline %s completed: %d models executed\n", spec.ID, len(run.ExecutedModels))

	result := &Result{
		RunID:               uuid.NewString(),
		Timestamp:           time.Now().UTC(),
		PipelineID:          spec.ID,
		PipelineName:        spec.Name,
		Run:                 run,
		VerificationSkipped: opts.NoVerify,
	}

	if opts.CompileOnly {
		return saveResult(h.cfg.ResultsDir, result)
	}

	conn := warehouse.New(h.creds, h.cfg.StatementTimeout(), h.log)
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	defer conn.Close()

	collector := metrics.NewCollector(conn, h.cfg.HistoryLookback(), h.log)

	fmt.Fprintf(h.out, "  Collecting build metrics for pipeline %s...\n", spec.ID)
	result.BuildMetrics = h.collectBuildMetrics(ctx, collector, spec.ID, run)

	fmt.Fprintf(h.out, "  Measuring query-time performance for pipeline %s...\n", spec.ID)
	result.QueryMetrics = h.collectQueryMetrics(ctx, collector, spec, run)

	if !opts.NoVerify {
		fmt.Fprintf(h.out, "  Verifying output for pipeline %s...\n", spec.ID)
		summary, err := h.verifyRun(ctx, conn, store, spec, run)
		if err != nil {
			return err
		}
		result.Verification = summary
		fmt.Fprintf(h.out, "  Verification: %d/%d models passed\n",
			summary.PassedModels, summary.TotalModels)

		if !summary.Passed() {
			// Persist the failed run so it can be inspected.
			if saveErr := saveResult(h.cfg.ResultsDir, result); saveErr != nil {
				h.log.Error("could not persist failed run", zap.Error(saveErr))
			}
			return &VerificationFailedError{
				PipelineID:   spec.ID,
				PassedModels: summary.PassedModels,
				TotalModels:  summary.TotalModels,
			}
		}
	} else {
		fmt.Fprintln(h.out, "  Skipped output verification (--no-verify)")
	}

	if err := saveResult(h.cfg.ResultsDir, result); err != nil {
		return err
	}
	fmt.Fprintf(h.out, "  Results saved for pipeline %s\n", spec.ID)
	return nil
}

// collectBuildMetrics polls for build metrics until at least one DDL
// statement is attributed or the deadline passes. The history populates
// asynchronously, so the first read often comes back empty.
func (h *Harness) collectBuildMetrics(ctx context.Context, collector *metrics.Collector, pipelineID string, run *executor.PipelineRun) *metrics.PipelineMetrics {
	deadline := time.Now().Add(h.cfg.PollDeadline())
	interval := 2 * time.Second

	for {
		m := collector.CollectBuild(ctx, pipelineID, run.StartTimestamp, run.ExecutedModels, run.FQNModels)
		if matchedQueries(m) > 0 || time.Now().After(deadline) {
			if matchedQueries(m) == 0 {
				h.log.Warn("no build queries attributed before deadline",
					zap.String("pipeline", pipelineID))
			}
			return m
		}
		h.log.Debug("build metrics not yet visible, retrying",
			zap.String("pipeline", pipelineID),
			zap.Duration("interval", interval))
		select {
		case <-ctx.Done():
			return m
		case <-time.After(interval):
		}
		interval = time.Duration(float64(interval) * 1.5)
		if interval > 10*time.Second {
			interval = 10 * time.Second
		}
	}
}

// collectQueryMetrics probes the pipeline's final models and looks up the
// probes in the query history by ID.
func (h *Harness) collectQueryMetrics(ctx context.Context, collector *metrics.Collector, spec config.PipelineSpec, run *executor.PipelineRun) *metrics.PipelineMetrics {
	targets := finalModelTargets(spec, run)
	if len(targets) == 0 {
		h.log.Warn("no final models configured, skipping query-time measurement",
			zap.String("pipeline", spec.ID))
		return collector.CollectByQueryIDs(ctx, spec.ID, nil)
	}

	probes, failures := collector.ProbeFinalModels(ctx, targets)
	for _, f := range failures {
		fmt.Fprintf(h.out, "  warning: probe failed for %s: %s\n", f.ModelName, f.Error)
	}

	ids := make([]string, 0, len(probes))
	for _, p := range probes {
		ids = append(ids, p.QueryID)
	}
	if err := collector.WaitForQueryIDs(ctx, ids, h.cfg.PollDeadline()); err != nil {
		h.log.Warn("query history wait interrupted", zap.Error(err))
	}

	return collector.CollectByQueryIDs(ctx, spec.ID, probes)
}

func (h *Harness) verifyRun(ctx context.Context, conn *warehouse.Connector, store *baseline.Store, spec config.PipelineSpec, run *executor.PipelineRun) (*verify.Summary, error) {
	var fingerprints []verify.Fingerprint
	base, err := store.Load(spec.Name)
	switch {
	case err == nil:
		fingerprints = base.Fingerprints
	case errors.As(err, new(*baseline.NotFoundError)):
		// First run: verification accepts everything.
	default:
		return nil, err
	}

	verifier := verify.NewVerifier(conn, h.log)
	return verifier.VerifyModels(ctx, spec.ID, run.FQNModels, fingerprints), nil
}

// SaveBaseline snapshots the latest run results as the new baseline for the
// selected pipelines. An existing baseline (legacy format included) is only
// replaced with force.
func (h *Harness) SaveBaseline(ctx context.Context, selector string, force bool) error {
	pipelines, err := h.selectPipelines(selector)
	if err != nil {
		return err
	}
	store := baseline.NewStore(h.cfg.BaselinesDir, h.log)

	for _, spec := range pipelines {
		result, err := loadResult(h.cfg.ResultsDir, spec.ID)
		if err != nil {
			return err
		}
		if result.BuildMetrics == nil {
			return fmt.Errorf("no build metrics recorded for pipeline %s. Run benchmark first", spec.ID)
		}

		if store.Exists(spec.Name) && !force {
			return &BaselineExistsError{PipelineName: spec.Name}
		}

		b := &baseline.Baseline{
			PipelineName: spec.Name,
			BuildMetrics: result.BuildMetrics,
			QueryMetrics: result.QueryMetrics,
			Fingerprints: result.Fingerprints(),
			Metadata:     baseline.CollectMetadata(h.cfg.DbtBinary, h.log),
		}
		if b.QueryMetrics == nil {
			b.QueryMetrics = &metrics.PipelineMetrics{PipelineID: spec.ID, Timestamp: time.Now().UTC()}
		}
		if err := store.Save(b); err != nil {
			return err
		}
		fmt.Fprintf(h.out, "Baseline saved for %s\n", spec.Name)
	}
	return nil
}

// Compare renders and persists baseline-vs-current comparisons for the
// selected pipelines. Regressions warn but do not fail the command.
func (h *Harness) Compare(ctx context.Context, selector string, detail, noColor bool) error {
	pipelines, err := h.selectPipelines(selector)
	if err != nil {
		return err
	}
	store := baseline.NewStore(h.cfg.BaselinesDir, h.log)
	renderer := report.NewRenderer(h.out, !noColor)
	writer := report.NewWriter(h.cfg.ReportsDir, h.log)

	var comparisons []*report.PipelineComparison
	hasRegressions := false

	for _, spec := range pipelines {
		result, err := loadResult(h.cfg.ResultsDir, spec.ID)
		if err != nil {
			return err
		}
		base, err := store.Load(spec.Name)
		if err != nil {
			return err
		}

		comparison := report.Compare(spec.Name,
			base.BuildMetrics, result.BuildMetrics,
			base.QueryMetrics, result.QueryMetrics,
			h.cfg.Cost, verificationStatus(result))
		comparisons = append(comparisons, comparison)

		renderer.PrintSummary(comparison)
		if detail {
			renderer.PrintModelDetail(result.BuildMetrics)
			renderer.PrintModelDetail(result.QueryMetrics)
		}

		path, err := writer.WriteReport(comparison)
		if err != nil {
			return err
		}
		fmt.Fprintf(h.out, "Report saved: %s\n", path)

		if comparison.HasRegressions() {
			hasRegressions = true
		}
	}

	if len(comparisons) > 1 {
		renderer.PrintAggregated(comparisons)
		path, err := writer.WriteAggregated(comparisons)
		if err != nil {
			return err
		}
		fmt.Fprintf(h.out, "Aggregated report saved: %s\n", path)
	}

	if hasRegressions {
		fmt.Fprintln(h.out, "Comparison completed - REGRESSIONS DETECTED")
	} else {
		fmt.Fprintln(h.out, "Comparison completed - no regressions")
	}
	return nil
}

// ClearBaseline removes stored baselines for the selected pipelines.
func (h *Harness) ClearBaseline(selector string) error {
	pipelines, err := h.selectPipelines(selector)
	if err != nil {
		return err
	}
	store := baseline.NewStore(h.cfg.BaselinesDir, h.log)
	for _, spec := range pipelines {
		if err := store.Clear(spec.Name); err != nil {
			return err
		}
		fmt.Fprintf(h.out, "Baseline cleared for %s\n", spec.Name)
	}
	return nil
}

func (h *Harness) selectPipelines(selector string) ([]config.PipelineSpec, error) {
	id, err := h.cfg.NormalizePipelineID(selector)
	if err != nil {
		return nil, err
	}
	return h.cfg.ExpandPipelines(id), nil
}

func verificationStatus(r *Result) string {
	if r.VerificationSkipped {
		return "skipped"
	}
	if r.Verification == nil {
		return ""
	}
	if r.Verification.Passed() {
		return fmt.Sprintf("passed (%d/%d models)", r.Verification.PassedModels, r.Verification.TotalModels)
	}
	return fmt.Sprintf("failed (%d/%d models)", r.Verification.PassedModels, r.Verification.TotalModels)
}

// matchedQueries counts the history records attributed across all models.
func matchedQueries(m *metrics.PipelineMetrics) int {
	total := 0
	for _, model := range m.ModelDetails {
		total += model.QueryCount
	}
	return total
}

// finalModelTargets filters the run's FQN models down to the configured
// final models, case-insensitively.
func finalModelTargets(spec config.PipelineSpec, run *executor.PipelineRun) []metrics.ModelTarget {
	var targets []metrics.ModelTarget
	for _, final := range spec.FinalModels {
		suffix := "." + strings.ToUpper(final)
		for _, fqn := range run.FQNModels {
			if strings.HasSuffix(strings.ToUpper(fqn), suffix) {
				targets = append(targets, metrics.ModelTarget{Name: final, FQN: fqn})
				break
			}
		}
	}
	return targets
}
