package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Artifact is the machine-readable report written per pipeline.
type Artifact struct {
	RunID      string              `json:"run_id"`
	Generated  time.Time           `json:"generated"`
	Comparison *PipelineComparison `json:"comparison"`
}

// AggregatedArtifact rolls up all compared pipelines in one file.
type AggregatedArtifact struct {
	RunID            string                `json:"run_id"`
	Generated        time.Time             `json:"generated"`
	Pipelines        []*PipelineComparison `json:"pipelines"`
	TotalRegressions int                   `json:"total_regressions"`
}

// Writer persists JSON report artifacts under a reports directory.
type Writer struct {
	dir string
	log *zap.Logger
}

// NewWriter builds a report Writer rooted at dir.
func NewWriter(dir string, log *zap.Logger) *Writer {
	return &Writer{dir: dir, log: log}
}

// WriteReport writes one pipeline's comparison to a timestamped file and
// returns the path.
func (w *Writer) WriteReport(c *PipelineComparison) (string, error) {
	artifact := &Artifact{
		RunID:      uuid.NewString(),
		Generated:  time.Now().UTC(),
		Comparison: c,
	}
	name := fmt.Sprintf("%s_%s_report.json", timestampPrefix(), slug(c.PipelineName))
	return w.write(name, artifact)
}

// WriteAggregated writes the cross-pipeline rollup and returns the path.
func (w *Writer) WriteAggregated(comparisons []*PipelineComparison) (string, error) {
	total := 0
	for _, c := range comparisons {
		total += len(c.Warnings())
	}
	artifact := &AggregatedArtifact{
		RunID:            uuid.NewString(),
		Generated:        time.Now().UTC(),
		Pipelines:        comparisons,
		TotalRegressions: total,
	}
	name := fmt.Sprintf("%s_all_pipelines_report.json", timestampPrefix())
	return w.write(name, artifact)
}

func (w *Writer) write(name string, v any) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("creating reports dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	w.log.Info("report written", zap.String("path", path))
	return path, nil
}

func timestampPrefix() string {
	return time.Now().UTC().Format("20060102_150405")
}

func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}
