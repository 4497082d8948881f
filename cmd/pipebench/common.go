package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/benchtools/pipebench/internal/config"
	"github.com/benchtools/pipebench/internal/harness"
	"github.com/benchtools/pipebench/internal/logging"
)

// buildHarness loads configuration and credentials and wires the harness.
// The returned cleanup flushes the logger.
func buildHarness() (*harness.Harness, func(), error) {
	log, err := logging.New(verbose)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = log.Sync() }

	cfg, err := config.Load(configPath)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	creds, err := config.LoadCredentials(cfg.ProfilesPath, cfg.Profile)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	log.Debug("credentials resolved", zap.String("connection", creds.String()))

	return harness.New(cfg, creds, log, os.Stdout), cleanup, nil
}
