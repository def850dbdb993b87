package main

import (
	"fmt"

	"go.uber.org/zap"

	"analyst/internal/cache"
	"analyst/internal/config"
	"analyst/internal/llm"
	"analyst/internal/parse"
	"analyst/internal/sandbox"
	"analyst/internal/session"
)

// buildEngine wires the orchestrator from configuration. The returned
// closer releases the cache store.
func buildEngine(cfg *config.Config, logger *zap.Logger) (*session.Orchestrator, func(), error) {
	chain, err := llm.NewChain(cfg.LLM, logger.Named("llm"))
	if err != nil {
		return nil, nil, fmt.Errorf("build LLM chain: %w", err)
	}

	executor, err := sandbox.New(cfg.Execution, logger.Named("sandbox"))
	if err != nil {
		return nil, nil, fmt.Errorf("build sandbox: %w", err)
	}

	var store *cache.Store
	closer := func() {}
	if cfg.Cache.Enabled {
		store, err = cache.Open(cfg.Cache.Path, logger.Named("cache"))
		if err != nil {
			// A broken cache degrades to uncached operation.
			logger.Warn("cache unavailable, continuing without it", zap.Error(err))
			store = nil
		} else {
			closer = func() { _ = store.Close() }
		}
	}

	parser := parse.New(cfg.LLM.SpecialistNames())
	return session.New(chain, parser, executor, store, cfg, logger.Named("session")), closer, nil
}

// loadConfig reads the config file (defaults when the path is empty or the
// file is absent) and validates it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
