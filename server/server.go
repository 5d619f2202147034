package server

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cnosuke/agent-fetch/classifier"
	"github.com/cnosuke/agent-fetch/config"
	"github.com/cnosuke/agent-fetch/fetcher"
	ierrors "github.com/cnosuke/agent-fetch/internal/errors"
	"github.com/cnosuke/agent-fetch/store"
)

// Run - Wire the pipeline together and serve the web viewer.
func Run(cfg *config.Config, name string, version string, revision string) error {
	zap.S().Infow("starting agent-fetch viewer",
		"name", name,
		"version", version,
		"revision", revision,
		"port", cfg.Server.Port,
		"data_dir", cfg.Storage.DataDir)

	cl := classifier.New(&classifier.Config{
		MaxRawHTML: cfg.Fetch.MaxRawHTML,
	})

	f, err := fetcher.NewHTTPFetcher(&fetcher.Config{
		Timeout:      cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	}, cl)
	if err != nil {
		zap.S().Errorw("failed to create HTTP fetcher", "error", err)
		return err
	}

	st, err := store.New(cfg.Storage.DataDir)
	if err != nil {
		zap.S().Errorw("failed to open record store", "error", err)
		return err
	}

	router := NewRouter(f, st)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	zap.S().Infow("listening", "addr", addr)
	if err := router.Run(addr); err != nil {
		return ierrors.Wrap(err, "failed to start server")
	}
	return nil
}
