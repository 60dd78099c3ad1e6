package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"bizplan/pkg/core/history"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id      INTEGER PRIMARY KEY,
	name    TEXT NOT NULL,
	section TEXT NOT NULL DEFAULT '',
	code    TEXT NOT NULL
) STRICT;

CREATE TABLE IF NOT EXISTS ledger_rows (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	client     TEXT NOT NULL,
	year       INTEGER NOT NULL,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	amount     REAL NOT NULL
) STRICT;

CREATE INDEX IF NOT EXISTS idx_ledger_rows_client_year ON ledger_rows(client, year);

CREATE TABLE IF NOT EXISTS scenarios (
	id         TEXT PRIMARY KEY,
	client     TEXT NOT NULL,
	name       TEXT NOT NULL,
	horizon    INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE (client, name)
) STRICT;
`

// SQLite is the local file backend.
type SQLite struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if path == MemoryPath {
		// every pooled connection would otherwise see its own empty database
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
	}

	return &SQLite{conn: conn, path: path}, nil
}

// Conn returns the underlying sql.DB connection.
func (db *SQLite) Conn() *sql.DB {
	return db.conn
}

// Close closes the database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

// Migrate creates the tables when missing.
func (db *SQLite) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// UpsertAccount inserts or updates an account by id.
func (db *SQLite) UpsertAccount(ctx context.Context, a Account) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO accounts (id, name, section, code)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			section = excluded.section,
			code = excluded.code
	`, a.ID, a.Name, a.Section, a.Code)
	if err != nil {
		return fmt.Errorf("failed to save account %d: %w", a.ID, err)
	}
	return nil
}

// AddEntries books entries in one transaction.
func (db *SQLite) AddEntries(ctx context.Context, entries []Entry) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger_rows (client, year, account_id, amount) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Client, e.Year, e.AccountID, e.Amount); err != nil {
			return fmt.Errorf("failed to add entry %s/%d/%d: %w", e.Client, e.Year, e.AccountID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entries: %w", err)
	}
	return nil
}

// LoadRows implements history.Source.
func (db *SQLite) LoadRows(ctx context.Context, client string, years []int) ([]history.Row, error) {
	query := `
		SELECT l.year, a.code, l.amount
		FROM ledger_rows l
		JOIN accounts a ON a.id = l.account_id
		WHERE l.client = ?`
	args := []interface{}{client}
	if len(years) > 0 {
		query += ` AND l.year IN (` + strings.TrimSuffix(strings.Repeat("?,", len(years)), ",") + `)`
		for _, y := range years {
			args = append(args, y)
		}
	}
	query += ` ORDER BY l.year, a.code`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger rows: %w", err)
	}
	defer rows.Close()

	var out []history.Row
	for rows.Next() {
		var row history.Row
		if err := rows.Scan(&row.Year, &row.Code, &row.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}
	return out, nil
}

// Clients lists every client with booked rows.
func (db *SQLite) Clients(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT client FROM ledger_rows ORDER BY client`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Years lists the years with booked rows for client, ascending.
func (db *SQLite) Years(ctx context.Context, client string) ([]int, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT year FROM ledger_rows WHERE client = ? ORDER BY year`, client)
	if err != nil {
		return nil, fmt.Errorf("failed to query years: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("failed to scan year: %w", err)
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

// SaveScenario upserts s by (client, name). A new scenario gets a fresh id;
// an existing one keeps its id. s.ID and s.CreatedAt are updated in place.
func (db *SQLite) SaveScenario(ctx context.Context, s *Scenario) error {
	payload, err := json.Marshal(scenarioPayload{Overrides: s.Overrides, Years: s.Years})
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}

	now := time.Now().UTC()
	err = db.conn.QueryRowContext(ctx, `
		INSERT INTO scenarios (id, client, name, horizon, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (client, name) DO UPDATE SET
			horizon = excluded.horizon,
			payload = excluded.payload,
			created_at = excluded.created_at
		RETURNING id
	`, uuid.NewString(), s.Client, s.Name, s.Horizon, string(payload), now.Format(timeLayout)).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to save scenario %q: %w", s.Name, err)
	}
	s.CreatedAt = now
	return nil
}

// ListScenarios returns the client's scenarios, newest first.
func (db *SQLite) ListScenarios(ctx context.Context, client string) ([]ScenarioSummary, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, horizon, created_at
		FROM scenarios
		WHERE client = ?
		ORDER BY created_at DESC, rowid DESC
	`, client)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var out []ScenarioSummary
	for rows.Next() {
		var s ScenarioSummary
		var created string
		if err := rows.Scan(&s.ID, &s.Name, &s.Horizon, &created); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		if s.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("failed to parse created_at %q: %w", created, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LoadScenario fetches one scenario.
func (db *SQLite) LoadScenario(ctx context.Context, client, name string) (*Scenario, error) {
	s := &Scenario{Client: client, Name: name}
	var payload, created string
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, horizon, payload, created_at
		FROM scenarios
		WHERE client = ? AND name = ?
	`, client, name).Scan(&s.ID, &s.Horizon, &payload, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrScenarioNotFound, client, name)
		}
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	if s.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("failed to parse created_at %q: %w", created, err)
	}
	if err := decodePayload([]byte(payload), s); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteScenario removes one scenario.
func (db *SQLite) DeleteScenario(ctx context.Context, client, name string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM scenarios WHERE client = ? AND name = ?`, client, name)
	if err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrScenarioNotFound, client, name)
	}
	return nil
}

var (
	_ Repository = (*SQLite)(nil)
	_ Repository = (*Postgres)(nil)
)
