// Package logging builds the zap logger that is injected into every
// harness component. The logger's lifecycle is scoped to one invocation;
// there is no package-level singleton.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger at info level, or debug level when
// verbose is set.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}

// MustNew is New but panics on error. Used at command startup where a
// logger failure leaves nothing to report with anyway.
func MustNew(verbose bool) *zap.Logger {
	return zap.Must(New(verbose))
}
