package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/kalambet/sqlrag/internal/api"
	"github.com/kalambet/sqlrag/internal/composer"
	"github.com/kalambet/sqlrag/internal/config"
	"github.com/kalambet/sqlrag/internal/engine"
	"github.com/kalambet/sqlrag/internal/executor"
	"github.com/kalambet/sqlrag/internal/pipeline"
	"github.com/kalambet/sqlrag/internal/retrieval"
	"github.com/kalambet/sqlrag/internal/sanitize"
	"github.com/kalambet/sqlrag/internal/storage"
)

// app holds everything loaded once before the first question is accepted.
type app struct {
	cfg      config.Config
	store    *retrieval.SQLiteStore
	pipeline *pipeline.Pipeline
}

// openApp readies the backends, opens the index read-only and builds the
// pipeline. Any failure here is fatal for the caller.
func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	printStep("Loading backends (generator=%s, embedder=%s)", cfg.Backend.Generator, cfg.Backend.Embedder)
	backends, err := engine.Detect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	dims, err := engine.Prepare(ctx, backends, statusOut)
	if err != nil {
		return nil, err
	}

	printStep("Loading index from %s", cfg.Index.Dir)
	store, err := retrieval.OpenReadOnly(cfg.Index.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	if err := retrieval.CheckDimensions(ctx, store, cfg.Index.Collection, dims); err != nil {
		store.Close()
		return nil, fmt.Errorf("%w; rebuild it with: sqlrag index build --file <doc>", err)
	}
	if n, err := store.Count(ctx, cfg.Index.Collection); err == nil && n == 0 {
		printWarning("index collection %q is empty; answers will be generated without context", cfg.Index.Collection)
	}

	exec, err := executor.New(cfg.Database)
	if err != nil {
		store.Close()
		return nil, err
	}

	retriever := retrieval.NewRetriever(retrieval.NewEmbedder(backends.Embedder), store, cfg.Index.Collection)
	p := pipeline.New(
		retriever,
		composer.New(cfg.Prompt.MaxContextTokens),
		backends.Generator,
		sanitize.New(sanitize.Default()),
		exec,
		pipeline.Options{TopK: cfg.Retrieval.TopK, MaxTokens: cfg.Generation.MaxTokens},
		logger,
	)

	return &app{cfg: cfg, store: store, pipeline: p}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing index: %v\n", err)
	}
}

func (a *app) healthChecks() map[string]api.HealthCheck {
	return map[string]api.HealthCheck{
		"index": func(ctx context.Context) error {
			_, err := a.store.Count(ctx, a.cfg.Index.Collection)
			return err
		},
		"database": func(ctx context.Context) error {
			return checkDatabase(a.cfg.Database)
		},
	}
}

// checkDatabase reports whether the configured database is present. Only
// file-backed SQLite can be checked without connecting.
func checkDatabase(cfg config.DatabaseConfig) error {
	if cfg.Driver != config.DriverSQLite {
		return nil
	}
	ok, err := storage.Exists(cfg.DSN)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("database file %s not found; create it with: sqlrag db seed", cfg.DSN)
	}
	return nil
}

// startMetrics serves /health and /metrics on addr until the returned stop
// func is called. An empty addr disables the endpoint.
func startMetrics(ctx context.Context, addr string, checks map[string]api.HealthCheck, logger *slog.Logger) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := api.Serve(ctx, ln, api.NewHTTPHandler(checks), logger); err != nil {
			logger.Error("metrics server error", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}
