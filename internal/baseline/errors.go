package baseline

import "fmt"

// FormatError reports a baseline file in an unsupported layout. Legacy files
// are never migrated; the user must regenerate them.
type FormatError struct {
	Path    string
	Message string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("baseline %s: %s", e.Path, e.Message)
}

// NotFoundError reports a missing baseline for a pipeline.
type NotFoundError struct {
	PipelineName string
	Path         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no baseline found for %q (looked at %s)", e.PipelineName, e.Path)
}
