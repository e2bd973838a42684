// Package storage persists catalog rows. Rows are upserted keyed by
// id, so re-running a scrape refreshes rows instead of duplicating
// them.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/types"
)

// Storage is the interface for all storage backends.
type Storage interface {
	// Upsert inserts or replaces a batch of rows keyed by id.
	Upsert(ctx context.Context, rows []types.Row) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New creates the configured storage backend. An unreachable backend
// is fatal; everything downstream depends on being able to persist.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Storage, error) {
	switch cfg.Type {
	case "postgres":
		return NewPostgres(ctx, cfg, logger)
	case "mongodb":
		return NewMongo(ctx, cfg, logger)
	case "jsonl":
		return NewJSONL(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
