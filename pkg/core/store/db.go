package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool     *pgxpool.Pool
	poolOnce sync.Once
	poolErr  error
)

// InitDB initializes the shared connection pool from databaseURL. Later calls
// return the outcome of the first one.
func InitDB(ctx context.Context, databaseURL string) error {
	poolOnce.Do(func() {
		if databaseURL == "" {
			poolErr = fmt.Errorf("DATABASE_URL not set")
			return
		}

		config, err := pgxpool.ParseConfig(databaseURL)
		if err != nil {
			poolErr = fmt.Errorf("failed to parse database config: %w", err)
			return
		}

		p, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			poolErr = fmt.Errorf("failed to create pool: %w", err)
			return
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			poolErr = fmt.Errorf("failed to ping database: %w", err)
			return
		}
		pool = p
	})
	return poolErr
}

// GetPool returns the shared connection pool, nil before InitDB.
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the shared connection pool.
func Close() {
	if pool != nil {
		pool.Close()
	}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id      INTEGER PRIMARY KEY,
	name    TEXT NOT NULL,
	section TEXT NOT NULL DEFAULT '',
	code    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_rows (
	id         BIGSERIAL PRIMARY KEY,
	client     TEXT NOT NULL,
	year       INTEGER NOT NULL,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	amount     DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_rows_client_year ON ledger_rows(client, year);

CREATE TABLE IF NOT EXISTS scenarios (
	id         UUID PRIMARY KEY,
	client     TEXT NOT NULL,
	name       TEXT NOT NULL,
	horizon    INTEGER NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (client, name)
);
`
