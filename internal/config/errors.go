package config

import (
	"fmt"
	"strings"
)

// ConfigurationError reports missing or invalid configuration. It is fatal
// and never retried.
type ConfigurationError struct {
	Message string
	Missing []string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error: " + e.Message
	if len(e.Missing) > 0 {
		msg += ": missing " + strings.Join(e.Missing, ", ")
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// InvalidArgumentError reports a bad pipeline selector. It is raised before
// any side effects and maps to exit code 3.
type InvalidArgumentError struct {
	Argument string
	Valid    []string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid pipeline: %q. Must be one of %s", e.Argument, strings.Join(e.Valid, ", "))
}
