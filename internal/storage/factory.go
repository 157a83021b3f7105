package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syntrixbase/livequery/internal/comparator"
	"github.com/syntrixbase/livequery/internal/livequery"
	"github.com/syntrixbase/livequery/internal/storage/config"
	"github.com/syntrixbase/livequery/internal/storage/memory"
	"github.com/syntrixbase/livequery/internal/storage/mongo"
	"github.com/syntrixbase/livequery/internal/storage/sqlite"
)

// Store is a livequery.Store that holds external resources.
type Store interface {
	livequery.Store

	// Close releases connections held by the store.
	Close(ctx context.Context) error
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*mongo.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
)

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	tag, err := cfg.Language()
	if err != nil {
		return nil, err
	}

	var (
		store   Store
		openErr error
	)
	switch cfg.Backend {
	case config.BackendMemory, "":
		slog.Debug("Opening memory store", "locale", tag.String())
		store, openErr = memory.New(comparator.WithLocale(tag))
	case config.BackendMongo:
		slog.Debug("Opening mongo store", "database", cfg.Mongo.DatabaseName, "collection", cfg.Mongo.Collection)
		store, openErr = mongo.Open(ctx, cfg.Mongo, cfg.Locale)
	case config.BackendSQLite:
		slog.Debug("Opening sqlite store", "path", cfg.SQLite.Path, "table", cfg.SQLite.Table)
		store, openErr = sqlite.Open(cfg.SQLite.Path, cfg.SQLite.Table, tag)
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Backend)
	}
	if openErr != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, openErr)
	}
	return store, nil
}
