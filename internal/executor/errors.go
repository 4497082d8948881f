package executor

import "fmt"

// ExecutionError reports a failed build tool invocation. Build failures are
// final: the harness never retries a failed compile or run.
type ExecutionError struct {
	Phase  string // "compile" or "run"
	Output string
	Cause  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("dbt %s failed: %v", e.Phase, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// ManifestError reports a missing or unreadable compilation manifest.
type ManifestError struct {
	Path  string
	Cause error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Cause)
}

func (e *ManifestError) Unwrap() error {
	return e.Cause
}
