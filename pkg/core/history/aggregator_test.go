package history

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/lineitem"
)

type stubSource struct {
	rows []Row
	err  error
}

func (s stubSource) LoadRows(_ context.Context, _ string, _ []int) ([]Row, error) {
	return s.rows, s.err
}

func newAggregator() *Aggregator {
	return NewAggregator(assumption.MustDefaultCatalog(), zerolog.Nop())
}

func sampleLedger() lineitem.Ledger {
	l := lineitem.Ledger{}
	l.Set(2022, lineitem.NetSales, 100)
	l.Set(2023, lineitem.NetSales, 110)
	l.Set(2024, lineitem.NetSales, 121)

	l.Set(2022, lineitem.Purchases, 60)
	l.Set(2023, lineitem.Purchases, 66)
	l.Set(2024, lineitem.Purchases, 72.6)

	l.Set(2022, lineitem.BankDebt, 100)
	l.Set(2023, lineitem.BankDebt, 200)
	l.Set(2023, lineitem.InterestExpense, 9)
	l.Set(2024, lineitem.BankDebt, 200)
	l.Set(2024, lineitem.InterestExpense, 10)

	l.Set(2024, lineitem.FinancialAssets, 900)
	return l
}

func TestLoadHistory_SumsRowsAndSkipsUnknown(t *testing.T) {
	src := stubSource{rows: []Row{
		{Year: 2024, Code: "RI01", Amount: 600},
		{Year: 2024, Code: "RI01", Amount: 400},
		{Year: 2024, Code: "RI99", Amount: 5},
		{Year: 2023, Code: "RI33", Amount: -20},
	}}
	ledger, err := newAggregator().LoadHistory(context.Background(), src, "acme", nil)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, ledger.Get(2024, lineitem.NetSales))
	assert.Equal(t, -20.0, ledger.Get(2023, lineitem.BankDebt))
	assert.Equal(t, 0.0, ledger.Get(2023, lineitem.NetSales))
	assert.Equal(t, []int{2023, 2024}, ledger.Years())
}

func TestLoadHistory_StorageErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := newAggregator().LoadHistory(context.Background(), stubSource{err: boom}, "acme", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestComputeAverages(t *testing.T) {
	avg := newAggregator().ComputeAverages(sampleLedger(), nil)

	tests := []struct {
		name string
		id   assumption.ID
		want float64
	}{
		{"growth averages yoy change", assumption.SalesGrowth, 10.0},
		{"percentage scaled by 100", assumption.COGSRatio, 60.0},
		{"interest over two-period average debt", assumption.BankInterestRate, 3.67},
		{"absolute amount plain mean", assumption.FinancialAssetsAmount, 300.0},
		{"division by zero every year falls back", assumption.InventoryTurnover, 4.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := avg[tt.id]
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, ok := avg[assumption.LeasedAssetsAmount]
	assert.False(t, ok, "assumptions without formula stay out of the table")
}

func TestComputeAverages_MissingPriorYearReadsZero(t *testing.T) {
	l := lineitem.Ledger{}
	for _, y := range []int{2022, 2023, 2024} {
		l.Set(y, lineitem.BankDebt, 100)
		l.Set(y, lineitem.InterestExpense, 5)
	}

	// 2022 averages 100 with an absent 2021: 5/50 = 10%, then 5% and 5%.
	avg := newAggregator().ComputeAverages(l, nil)
	assert.Equal(t, 6.67, avg[assumption.BankInterestRate])

	// A one-year window still uses the loaded prior year.
	avg = newAggregator().ComputeAverages(l, []int{2023})
	assert.Equal(t, 5.0, avg[assumption.BankInterestRate])
}

func TestComputeAverages_YearFilterAndRounding(t *testing.T) {
	l := lineitem.Ledger{}
	l.Set(2023, lineitem.NetSales, 3)
	l.Set(2023, lineitem.OtherIncome, 1)
	l.Set(2024, lineitem.NetSales, 3)
	l.Set(2024, lineitem.OtherIncome, 2)

	avg := newAggregator().ComputeAverages(l, []int{2023})
	assert.Equal(t, 33.33, avg[assumption.OtherIncomeRatio])

	// Only one year: no growth pair, default applies.
	assert.Equal(t, 3.0, avg[assumption.SalesGrowth])
}

func TestComputeAverages_EmptyLedger(t *testing.T) {
	c := assumption.MustDefaultCatalog()
	avg := NewAggregator(c, zerolog.Nop()).ComputeAverages(lineitem.Ledger{}, nil)
	for id, v := range avg {
		assert.Equal(t, c.Default(id), v)
	}
}
