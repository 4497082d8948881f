package harness

import "fmt"

// VerificationFailedError reports that one or more models failed output
// verification. It maps to its own exit code so CI can tell correctness
// failures from infrastructure failures.
type VerificationFailedError struct {
	PipelineID   string
	PassedModels int
	TotalModels  int
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("output verification failed for pipeline %s (%d/%d models passed)",
		e.PipelineID, e.PassedModels, e.TotalModels)
}

// BaselineExistsError reports a refusal to overwrite an existing baseline
// without --force.
type BaselineExistsError struct {
	PipelineName string
}

func (e *BaselineExistsError) Error() string {
	return fmt.Sprintf("baseline already exists for %s. Use --force to overwrite", e.PipelineName)
}

// NoResultError reports a missing run result for a command that needs one.
type NoResultError struct {
	PipelineID string
}

func (e *NoResultError) Error() string {
	return fmt.Sprintf("no results found for pipeline %s. Run benchmark first", e.PipelineID)
}
