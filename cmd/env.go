package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/iuslabs/intake-cli/internal/docstore"
	"github.com/iuslabs/intake-cli/internal/pipeline"
	"github.com/iuslabs/intake-cli/internal/store"
	anthropicpkg "github.com/iuslabs/intake-cli/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "intake.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// env bundles the long-lived collaborators most commands need.
type env struct {
	Store     store.Store
	Docs      docstore.Service
	Processor *pipeline.Processor
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	docs := docstore.New(cfg.Docstore.BaseURL)
	ai := anthropicpkg.NewClient(cfg.Anthropic.Key)

	return &env{
		Store:     st,
		Docs:      docs,
		Processor: pipeline.NewProcessor(st, docs, ai, cfg),
	}, nil
}

func (e *env) Close() {
	e.Store.Close() //nolint:errcheck
}
