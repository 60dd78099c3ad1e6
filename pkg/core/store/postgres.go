package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bizplan/pkg/core/history"
)

// Postgres is the PostgreSQL backend.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool. A nil pool falls back to the shared one
// created by InitDB.
func NewPostgres(p *pgxpool.Pool) *Postgres {
	if p == nil {
		p = GetPool()
	}
	return &Postgres{pool: p}
}

func (r *Postgres) db() (*pgxpool.Pool, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	return r.pool, nil
}

// Migrate creates the tables when missing.
func (r *Postgres) Migrate(ctx context.Context) error {
	p, err := r.db()
	if err != nil {
		return err
	}
	if _, err := p.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// UpsertAccount inserts or updates an account by id.
func (r *Postgres) UpsertAccount(ctx context.Context, a Account) error {
	p, err := r.db()
	if err != nil {
		return err
	}
	query := `
		INSERT INTO accounts (id, name, section, code)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			section = EXCLUDED.section,
			code = EXCLUDED.code
	`
	if _, err := p.Exec(ctx, query, a.ID, a.Name, a.Section, a.Code); err != nil {
		return fmt.Errorf("failed to save account %d: %w", a.ID, err)
	}
	return nil
}

// AddEntries books entries in one batch.
func (r *Postgres) AddEntries(ctx context.Context, entries []Entry) error {
	p, err := r.db()
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO ledger_rows (client, year, account_id, amount) VALUES ($1, $2, $3, $4)`,
			e.Client, e.Year, e.AccountID, e.Amount)
	}
	if err := p.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to add entries: %w", err)
	}
	return nil
}

// LoadRows implements history.Source.
func (r *Postgres) LoadRows(ctx context.Context, client string, years []int) ([]history.Row, error) {
	p, err := r.db()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT l.year, a.code, l.amount
		FROM ledger_rows l
		JOIN accounts a ON a.id = l.account_id
		WHERE l.client = $1 AND (cardinality($2::int[]) = 0 OR l.year = ANY($2::int[]))
		ORDER BY l.year, a.code
	`
	filter := make([]int32, len(years))
	for i, y := range years {
		filter[i] = int32(y)
	}
	rows, err := p.Query(ctx, query, client, filter)
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
func (r *Postgres) Clients(ctx context.Context) ([]string, error) {
	p, err := r.db()
	if err != nil {
		return nil, err
	}
	rows, err := p.Query(ctx, `SELECT DISTINCT client FROM ledger_rows ORDER BY client`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	clients, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan clients: %w", err)
	}
	return clients, nil
}

// Years lists the years with booked rows for client, ascending.
func (r *Postgres) Years(ctx context.Context, client string) ([]int, error) {
	p, err := r.db()
	if err != nil {
		return nil, err
	}
	rows, err := p.Query(ctx, `SELECT DISTINCT year FROM ledger_rows WHERE client = $1 ORDER BY year`, client)
	if err != nil {
		return nil, fmt.Errorf("failed to query years: %w", err)
	}
	years, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, fmt.Errorf("failed to scan years: %w", err)
	}
	out := make([]int, len(years))
	for i, y := range years {
		out[i] = int(y)
	}
	return out, nil
}

// SaveScenario upserts s by (client, name). A new scenario gets a fresh id;
// an existing one keeps its id. s.ID and s.CreatedAt are updated in place.
func (r *Postgres) SaveScenario(ctx context.Context, s *Scenario) error {
	p, err := r.db()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(scenarioPayload{Overrides: s.Overrides, Years: s.Years})
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}

	query := `
		INSERT INTO scenarios (id, client, name, horizon, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (client, name)
		DO UPDATE SET
			horizon = EXCLUDED.horizon,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at
		RETURNING id::text
	`
	now := time.Now().UTC()
	if err := p.QueryRow(ctx, query, uuid.NewString(), s.Client, s.Name, s.Horizon, payload, now).Scan(&s.ID); err != nil {
		return fmt.Errorf("failed to save scenario %q: %w", s.Name, err)
	}
	s.CreatedAt = now
	return nil
}

// ListScenarios returns the client's scenarios, newest first.
func (r *Postgres) ListScenarios(ctx context.Context, client string) ([]ScenarioSummary, error) {
	p, err := r.db()
	if err != nil {
		return nil, err
	}
	rows, err := p.Query(ctx, `
		SELECT id::text, name, horizon, created_at
		FROM scenarios
		WHERE client = $1
		ORDER BY created_at DESC
	`, client)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var out []ScenarioSummary
	for rows.Next() {
		var s ScenarioSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Horizon, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LoadScenario fetches one scenario.
func (r *Postgres) LoadScenario(ctx context.Context, client, name string) (*Scenario, error) {
	p, err := r.db()
	if err != nil {
		return nil, err
	}

	s := &Scenario{Client: client, Name: name}
	var payload []byte
	err = p.QueryRow(ctx, `
		SELECT id::text, horizon, payload, created_at
		FROM scenarios
		WHERE client = $1 AND name = $2
	`, client, name).Scan(&s.ID, &s.Horizon, &payload, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrScenarioNotFound, client, name)
		}
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	if err := decodePayload(payload, s); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteScenario removes one scenario.
func (r *Postgres) DeleteScenario(ctx context.Context, client, name string) error {
	p, err := r.db()
	if err != nil {
		return err
	}
	tag, err := p.Exec(ctx, `DELETE FROM scenarios WHERE client = $1 AND name = $2`, client, name)
	if err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", ErrScenarioNotFound, client, name)
	}
	return nil
}

// Close is a no-op when the pool is shared; the owner closes it.
func (r *Postgres) Close() error {
	if r.pool != nil && r.pool != GetPool() {
		r.pool.Close()
	}
	return nil
}

func decodePayload(data []byte, s *Scenario) error {
	var payload scenarioPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal scenario payload: %w", err)
	}
	s.Overrides = payload.Overrides
	s.Years = payload.Years
	return nil
}
