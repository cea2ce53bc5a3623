// Package app wires configuration, logging, the embedding client, the
// selected store backend and the services into one application object.
//
// External clients are constructed exactly once here and injected into the
// components that need them; nothing in the repository reads a global
// client. Lifecycle (connect, teardown) is explicit via Setup and Close.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitwall/pitwall/internal/answer"
	"github.com/pitwall/pitwall/internal/config"
	"github.com/pitwall/pitwall/internal/embedding"
	"github.com/pitwall/pitwall/internal/ingest"
	"github.com/pitwall/pitwall/internal/log"
	"github.com/pitwall/pitwall/internal/record"
	"github.com/pitwall/pitwall/internal/retrieval"
	"github.com/pitwall/pitwall/internal/store"
	badgerstore "github.com/pitwall/pitwall/internal/store/badger"
	"github.com/pitwall/pitwall/internal/store/postgres"
)

// App holds the wired application.
type App struct {
	Config       *config.Config
	Logger       log.Logger
	Embedder     *embedding.Client
	Store        store.Store
	Retrieval    *retrieval.Service
	Orchestrator *ingest.Orchestrator
	Answerer     *answer.Client

	pool *pgxpool.Pool
}

// Setup loads configuration and constructs every component. Configuration
// errors surface here, before any record is processed.
func Setup(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return SetupWith(ctx, cfg)
}

// SetupWith wires an application from an already-validated configuration.
func SetupWith(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})

	embedder, err := embedding.NewClient(embedding.Config{
		Endpoints:         cfg.Embedding.Endpoints,
		Model:             cfg.Embedding.Model,
		APIKey:            cfg.Embedding.APIKey,
		Dims:              cfg.Embedding.Dims,
		Timeout:           cfg.Embedding.Timeout,
		Stagger:           cfg.Embedding.Stagger,
		BatchDelay:        cfg.Embedding.BatchDelay,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	}, logger.With("component", "embedding"))
	if err != nil {
		return nil, fmt.Errorf("configure embedding client: %w", err)
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Embedder: embedder,
	}

	switch cfg.SelectedBackend() {
	case config.BackendPostgres:
		st, pool, err := postgres.Connect(ctx, postgres.Config{
			ConnURL: cfg.DatabaseURL,
			Dims:    cfg.Embedding.Dims,
		}, logger.With("component", "store"))
		if err != nil {
			return nil, err
		}
		app.Store = st
		app.pool = pool
	case config.BackendBadger:
		st, err := badgerstore.Open(badgerstore.Config{
			Dir:  cfg.BadgerDir,
			Dims: cfg.Embedding.Dims,
		}, logger.With("component", "store"))
		if err != nil {
			return nil, err
		}
		app.Store = st
	default:
		return nil, config.ErrNoBackend
	}

	app.Retrieval = retrieval.New(embedder, app.Store,
		logger.With("component", "retrieval"),
		retrieval.WithThreshold(cfg.RetrievalThreshold))

	normalizer := record.New(logger.With("component", "normalizer"))
	app.Orchestrator = ingest.New(normalizer, embedder, app.Store,
		cfg.Embedding.Dims, logger.With("component", "ingest"))

	app.Answerer = answer.New(answer.Config{
		Endpoint:    cfg.Answer.Endpoint,
		Model:       cfg.Answer.Model,
		APIKey:      cfg.Answer.APIKey,
		MaxTokens:   cfg.Answer.MaxTokens,
		Temperature: cfg.Answer.Temperature,
	}, logger.With("component", "answer"))

	logger.Info("application wired",
		"backend", cfg.SelectedBackend(),
		"embedding_model", cfg.Embedding.Model,
		"dims", cfg.Embedding.Dims)
	return app, nil
}

// Close releases the store and database resources.
func (a *App) Close() error {
	var firstErr error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			firstErr = err
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return firstErr
}
