package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lazypower/reactions/internal/config"
	"github.com/lazypower/reactions/internal/engine"
	"github.com/lazypower/reactions/internal/store"
)

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openEngine loads config, opens the backend, and restores persisted state.
// The caller closes the backend and stops the engine.
func openEngine() (*config.Config, *engine.Engine, store.Backend, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger := newLogger(cfg.Log)

	backend, err := store.OpenBackend(cfg.Backend.Driver, cfg.Backend.Path, logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open backend: %w", err)
	}

	eng, err := engine.New(cfg.Policy, backend, engine.Options{
		Logger:         logger,
		BackendTimeout: cfg.Backend.Timeout,
	})
	if err != nil {
		backend.Close()
		return nil, nil, nil, nil, fmt.Errorf("create engine: %w", err)
	}
	return &cfg, eng, backend, logger, nil
}
