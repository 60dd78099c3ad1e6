// Package store persists historical ledger rows and saved assumption
// scenarios. Two backends share one contract: PostgreSQL through pgxpool and
// a local SQLite file through modernc.org/sqlite.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/history"
	"bizplan/pkg/core/lineitem"
)

// ErrScenarioNotFound is returned when no scenario matches (client, name).
var ErrScenarioNotFound = errors.New("scenario not found")

// Account is one entry of the chart of accounts. Every stored amount is
// booked against an account, and the account maps it to a line item code.
type Account struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Section string `json:"section"`
	Code    string `json:"code"` // RI01..RI33
}

// Entry is one booked amount for a client and year.
type Entry struct {
	Client    string  `json:"client"`
	Year      int     `json:"year"`
	AccountID int     `json:"account_id"`
	Amount    float64 `json:"amount"`
}

// Scenario is a named, saved set of assumption overrides for a client.
type Scenario struct {
	ID        string               `json:"id"`
	Client    string               `json:"client"`
	Name      string               `json:"name"`
	Overrides assumption.Overrides `json:"overrides"`
	Years     []int                `json:"years"`
	Horizon   int                  `json:"horizon"`
	CreatedAt time.Time            `json:"created_at"`
}

// ScenarioSummary is the listing view of a scenario.
type ScenarioSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Horizon   int       `json:"horizon"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository is implemented by every backend.
type Repository interface {
	history.Source

	Migrate(ctx context.Context) error
	UpsertAccount(ctx context.Context, a Account) error
	AddEntries(ctx context.Context, entries []Entry) error
	Clients(ctx context.Context) ([]string, error)
	Years(ctx context.Context, client string) ([]int, error)

	SaveScenario(ctx context.Context, s *Scenario) error
	ListScenarios(ctx context.Context, client string) ([]ScenarioSummary, error)
	LoadScenario(ctx context.Context, client, name string) (*Scenario, error)
	DeleteScenario(ctx context.Context, client, name string) error

	Close() error
}

// scenarioPayload is the JSON document stored next to the scenario keys.
type scenarioPayload struct {
	Overrides assumption.Overrides `json:"overrides"`
	Years     []int                `json:"years"`
}

// DefaultAccounts returns one account per line item, numbered 1..33, for
// clients that book directly on the reclassified codes.
func DefaultAccounts() []Account {
	out := make([]Account, 0, lineitem.Count)
	for i, c := range lineitem.All() {
		section := "CE"
		if c.Kind() != lineitem.KindFlow {
			section = "SP"
		}
		out = append(out, Account{ID: i + 1, Name: c.Label(), Section: section, Code: c.String()})
	}
	return out
}

// ImportLedger books every non-zero amount of ledger for client against the
// default accounts, creating them first.
func ImportLedger(ctx context.Context, repo Repository, client string, ledger lineitem.Ledger) error {
	accounts := DefaultAccounts()
	for _, a := range accounts {
		if err := repo.UpsertAccount(ctx, a); err != nil {
			return err
		}
	}

	var entries []Entry
	for _, year := range ledger.Years() {
		y := ledger.Year(year)
		for i, c := range lineitem.All() {
			if v := y.Get(c); v != 0 {
				entries = append(entries, Entry{Client: client, Year: year, AccountID: accounts[i].ID, Amount: v})
			}
		}
	}
	if err := repo.AddEntries(ctx, entries); err != nil {
		return fmt.Errorf("import ledger for %q: %w", client, err)
	}
	return nil
}
