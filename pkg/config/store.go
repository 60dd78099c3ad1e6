package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"bizplan/pkg/core/store"
)

// OpenStore opens and migrates the configured backend.
func (c *Config) OpenStore(ctx context.Context) (store.Repository, error) {
	var repo store.Repository
	switch c.StoreDriver {
	case DriverPostgres:
		if err := store.InitDB(ctx, c.DatabaseURL); err != nil {
			return nil, err
		}
		repo = store.NewPostgres(store.GetPool())
	case DriverSQLite:
		if c.SQLitePath != store.MemoryPath {
			if err := os.MkdirAll(filepath.Dir(c.SQLitePath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		db, err := store.OpenSQLite(c.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo = db
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}
