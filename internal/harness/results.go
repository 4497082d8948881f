package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benchtools/pipebench/internal/executor"
	"github.com/benchtools/pipebench/internal/metrics"
	"github.com/benchtools/pipebench/internal/verify"
)

// Result is the persisted outcome of one pipeline benchmark run. It is the
// handoff between `run` and the `save-baseline`/`compare` commands.
type Result struct {
	RunID               string                   `json:"run_id"`
	Timestamp           time.Time                `json:"timestamp"`
	PipelineID          string                   `json:"pipeline_id"`
	PipelineName        string                   `json:"pipeline_name"`
	Run                 *executor.PipelineRun    `json:"run_data"`
	BuildMetrics        *metrics.PipelineMetrics `json:"build_metrics"`
	QueryMetrics        *metrics.PipelineMetrics `json:"query_metrics"`
	Verification        *verify.Summary          `json:"verification,omitempty"`
	VerificationSkipped bool                     `json:"verification_skipped"`
}

// Fingerprints derives baseline fingerprints from the verification results
// of this run.
func (r *Result) Fingerprints() []verify.Fingerprint {
	if r.Verification == nil {
		return nil
	}
	fps := make([]verify.Fingerprint, 0, len(r.Verification.Results))
	for _, res := range r.Verification.Results {
		fp := verify.Fingerprint{
			ModelName:   res.ModelName,
			FQN:         res.FQN,
			ContentHash: res.CurrentHash,
			Timestamp:   time.Now().UTC(),
		}
		if res.CurrentRowCount != nil {
			fp.RowCount = *res.CurrentRowCount
		}
		fps = append(fps, fp)
	}
	return fps
}

func resultPath(dir, pipelineID string) string {
	return filepath.Join(dir, fmt.Sprintf("pipeline_%s_result.json", strings.ToLower(pipelineID)))
}

func saveResult(dir string, r *Result) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := os.WriteFile(resultPath(dir, r.PipelineID), data, 0644); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

func loadResult(dir, pipelineID string) (*Result, error) {
	data, err := os.ReadFile(resultPath(dir, pipelineID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NoResultError{PipelineID: pipelineID}
		}
		return nil, fmt.Errorf("reading result: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return &r, nil
}
