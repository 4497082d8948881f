// Package baseline persists benchmark snapshots as JSON files and guards
// their structure on load.
package baseline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/benchtools/pipebench/internal/metrics"
	"github.com/benchtools/pipebench/internal/verify"
)

// Metadata records the provenance of a baseline snapshot. All fields except
// the timestamp are best-effort.
type Metadata struct {
	Timestamp  time.Time `json:"timestamp"`
	GitCommit  string    `json:"git_commit,omitempty"`
	DbtVersion string    `json:"dbt_version,omitempty"`
	Username   string    `json:"username,omitempty"`
}

// Baseline is one persisted benchmark snapshot for a pipeline.
type Baseline struct {
	PipelineName string                   `json:"pipeline_name"`
	BuildMetrics *metrics.PipelineMetrics `json:"build_metrics"`
	QueryMetrics *metrics.PipelineMetrics `json:"query_metrics"`
	Fingerprints []verify.Fingerprint     `json:"fingerprints"`
	Metadata     Metadata                 `json:"metadata"`
}

// baselineSchema is the structural contract every stored baseline must meet.
const baselineSchema = `{
  "type": "object",
  "required": ["pipeline_name", "build_metrics", "query_metrics", "fingerprints", "metadata"],
  "properties": {
    "pipeline_name": {"type": "string", "minLength": 1},
    "build_metrics": {"type": "object"},
    "query_metrics": {"type": "object"},
    "fingerprints": {"type": "array"},
    "metadata": {
      "type": "object",
      "required": ["timestamp"]
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(baselineSchema)

// Store reads and writes baseline files under a single directory.
type Store struct {
	dir string
	log *zap.Logger
}

// NewStore builds a Store rooted at dir. The directory is created on first
// save.
func NewStore(dir string, log *zap.Logger) *Store {
	return &Store{dir: dir, log: log}
}

// Path returns the baseline file path for a pipeline name.
func (s *Store) Path(pipelineName string) string {
	name := strings.ReplaceAll(strings.ToLower(pipelineName), " ", "_")
	return filepath.Join(s.dir, name+"_baseline.json")
}

// Exists reports whether a baseline is stored for the pipeline.
func (s *Store) Exists(pipelineName string) bool {
	_, err := os.Stat(s.Path(pipelineName))
	return err == nil
}

// Save writes a baseline, replacing any existing snapshot. Callers own the
// overwrite policy.
func (s *Store) Save(b *Baseline) error {
	if b.PipelineName == "" {
		return &FormatError{Message: "pipeline name must not be empty"}
	}
	if b.BuildMetrics == nil || b.QueryMetrics == nil {
		return &FormatError{Message: "baseline requires both build and query metrics"}
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating baselines dir: %w", err)
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding baseline: %w", err)
	}

	path := s.Path(b.PipelineName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing baseline: %w", err)
	}
	s.log.Info("baseline saved",
		zap.String("pipeline", b.PipelineName),
		zap.String("path", path))
	return nil
}

// Load reads and validates a pipeline's baseline. A legacy-format file is an
// error, not a silent miss: the caller must tell the user to regenerate.
func (s *Store) Load(pipelineName string) (*Baseline, error) {
	path := s.Path(pipelineName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{PipelineName: pipelineName, Path: path}
		}
		return nil, fmt.Errorf("reading baseline: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &FormatError{Path: path, Message: "not valid JSON: " + err.Error()}
	}
	if _, legacy := raw["metrics"]; legacy {
		if _, current := raw["build_metrics"]; !current {
			return nil, &FormatError{
				Path:    path,
				Message: "baseline file uses old format. Please regenerate baseline with save-baseline",
			}
		}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &FormatError{Path: path, Message: "schema check failed: " + err.Error()}
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, &FormatError{Path: path, Message: strings.Join(details, "; ")}
	}

	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, &FormatError{Path: path, Message: "decoding baseline: " + err.Error()}
	}
	s.log.Debug("baseline loaded", zap.String("pipeline", pipelineName), zap.String("path", path))
	return &b, nil
}

// Clear removes a pipeline's baseline. A missing file is not an error.
func (s *Store) Clear(pipelineName string) error {
	path := s.Path(pipelineName)
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting baseline: %w", err)
	}
	if err == nil {
		s.log.Info("baseline cleared", zap.String("pipeline", pipelineName))
	}
	return nil
}
