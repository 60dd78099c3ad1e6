package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/lineitem"
)

func setupTestDB(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestSQLite_LoadRowsJoinsAccounts(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.NoError(t, db.UpsertAccount(ctx, Account{ID: 101, Name: "Vendite Italia", Section: "CE", Code: "RI01"}))
	require.NoError(t, db.UpsertAccount(ctx, Account{ID: 102, Name: "Vendite estero", Section: "CE", Code: "RI01"}))
	require.NoError(t, db.UpsertAccount(ctx, Account{ID: 201, Name: "Banca", Section: "SP", Code: "RI33"}))

	require.NoError(t, db.AddEntries(ctx, []Entry{
		{Client: "acme", Year: 2023, AccountID: 101, Amount: 600},
		{Client: "acme", Year: 2023, AccountID: 102, Amount: 400},
		{Client: "acme", Year: 2024, AccountID: 101, Amount: 700},
		{Client: "acme", Year: 2024, AccountID: 201, Amount: 50},
		{Client: "other", Year: 2024, AccountID: 101, Amount: 9},
	}))

	rows, err := db.LoadRows(ctx, "acme", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	rows, err = db.LoadRows(ctx, "acme", []int{2023})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, 2023, r.Year)
		assert.Equal(t, "RI01", r.Code)
	}

	years, err := db.Years(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []int{2023, 2024}, years)

	clients, err := db.Clients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "other"}, clients)
}

func TestSQLite_AddEntriesRejectsUnknownAccount(t *testing.T) {
	db := setupTestDB(t)
	err := db.AddEntries(context.Background(), []Entry{{Client: "acme", Year: 2024, AccountID: 999, Amount: 1}})
	assert.Error(t, err)
}

func TestSQLite_ImportLedger(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	l := lineitem.Ledger{}
	l.Set(2024, lineitem.NetSales, 1_000_000)
	l.Set(2024, lineitem.BankDebt, 200_000)
	l.Set(2024, lineitem.Equity, 0)
	require.NoError(t, ImportLedger(ctx, db, "acme", l))

	rows, err := db.LoadRows(ctx, "acme", []int{2024})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "RI01", rows[0].Code)
	assert.Equal(t, 1_000_000.0, rows[0].Amount)
	assert.Equal(t, "RI33", rows[1].Code)
}

func TestSQLite_ScenarioLifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	ov := assumption.Overrides{}
	ov.Set(assumption.SalesGrowth, 2025, 5)
	ov.Set(assumption.SalesGrowth, 2026, 7.5)

	base := &Scenario{Client: "acme", Name: "base", Overrides: ov, Years: []int{2025, 2026}, Horizon: 2}
	require.NoError(t, db.SaveScenario(ctx, base))
	assert.NotEmpty(t, base.ID)
	firstID := base.ID

	stress := &Scenario{Client: "acme", Name: "stress", Overrides: assumption.Overrides{}, Years: []int{2025}, Horizon: 1}
	require.NoError(t, db.SaveScenario(ctx, stress))

	list, err := db.ListScenarios(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "stress", list[0].Name, "newest first")

	// saving under the same name replaces the content and keeps the id
	ov.Set(assumption.COGSRatio, 2025, 55)
	base.Horizon = 3
	require.NoError(t, db.SaveScenario(ctx, base))
	assert.Equal(t, firstID, base.ID)

	loaded, err := db.LoadScenario(ctx, "acme", "base")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Horizon)
	assert.Equal(t, []int{2025, 2026}, loaded.Years)
	v, ok := loaded.Overrides.Get(assumption.SalesGrowth, 2026)
	assert.True(t, ok)
	assert.Equal(t, 7.5, v)
	v, ok = loaded.Overrides.Get(assumption.COGSRatio, 2025)
	assert.True(t, ok)
	assert.Equal(t, 55.0, v)

	list, err = db.ListScenarios(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "base", list[0].Name)

	require.NoError(t, db.DeleteScenario(ctx, "acme", "base"))
	_, err = db.LoadScenario(ctx, "acme", "base")
	assert.ErrorIs(t, err, ErrScenarioNotFound)
	assert.ErrorIs(t, db.DeleteScenario(ctx, "acme", "base"), ErrScenarioNotFound)

	list, err = db.ListScenarios(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDefaultAccounts(t *testing.T) {
	accounts := DefaultAccounts()
	require.Len(t, accounts, lineitem.Count)
	assert.Equal(t, Account{ID: 1, Name: lineitem.NetSales.Label(), Section: "CE", Code: "RI01"}, accounts[0])
	assert.Equal(t, "SP", accounts[lineitem.Count-1].Section)
	assert.Equal(t, "RI33", accounts[lineitem.Count-1].Code)
}
