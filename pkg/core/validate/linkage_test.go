package validate

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/lineitem"
	"bizplan/pkg/core/projection"
	"bizplan/pkg/core/reclass"
)

// balancedBase returns a historical year whose balance sheet balances:
// tangible 400k + inventory 100k + cash 20k against equity 350k + bank 170k.
func balancedBase() *lineitem.YearLedger {
	y := lineitem.NewYearLedger()
	y.Set(lineitem.NetSales, 800_000)
	y.Set(lineitem.TangibleAssets, 400_000)
	y.Set(lineitem.Inventory, 100_000)
	y.Set(lineitem.Equity, 350_000)
	y.Set(lineitem.BankDebt, 170_000)
	y.Set(lineitem.Cash, 20_000)
	return y
}

func project(t *testing.T, horizon int) lineitem.Ledger {
	t.Helper()
	resolver := assumption.NewResolver(assumption.MustDefaultCatalog(), nil, nil)
	d := projection.NewDriver(projection.NewEngine(projection.DefaultParams(), zerolog.Nop()),
		projection.NewContext("acme", 2024, horizon), resolver)
	if err := d.Seed(balancedBase()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ledger, err := d.ProjectAll()
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	return ledger
}

func TestValidateProjection_AllLinked(t *testing.T) {
	ledger := project(t, 3)
	reports := ValidateProjection(reclass.MustDefaultModel(), ledger, []int{2025, 2026, 2027}, 0.01)

	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	for _, r := range reports {
		if !r.AllPassed {
			t.Errorf("year %d failed: %v (balance diff %.6f, equity diff %.6f, cash diff %.6f)",
				r.Year, r.FailedChecks, r.Balance.Difference, r.Equity.Difference, r.CashFlow.Difference)
		}
	}
	if !AllPassed(reports) {
		t.Error("AllPassed should be true")
	}
}

func TestValidateProjection_UnbalancedBaseReconciles(t *testing.T) {
	base := balancedBase()
	base.Set(lineitem.Cash, 50_000) // assets exceed funding by 30k

	resolver := assumption.NewResolver(assumption.MustDefaultCatalog(), nil, nil)
	d := projection.NewDriver(projection.NewEngine(projection.DefaultParams(), zerolog.Nop()),
		projection.NewContext("acme", 2024, 2), resolver)
	if err := d.Seed(base); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ledger, err := d.ProjectAll()
	if err != nil {
		t.Fatalf("project: %v", err)
	}

	reports := ValidateProjection(reclass.MustDefaultModel(), ledger, []int{2025, 2026}, 0.01)
	for _, r := range reports {
		if !r.AllPassed {
			t.Errorf("year %d failed: %v (cash diff %.4f)", r.Year, r.FailedChecks, r.CashFlow.Difference)
		}
	}

	first := reports[0].CashFlow
	if math.Abs(first.PFNOpening-150_000) > 0.01 {
		t.Errorf("expected implied opening PFN of 150000, got %.2f", first.PFNOpening)
	}
	if math.Abs(first.OpeningGap+30_000) > 0.01 {
		t.Errorf("expected opening gap of -30000, got %.2f", first.OpeningGap)
	}
	if math.Abs(reports[1].CashFlow.OpeningGap) > 0.01 {
		t.Errorf("projected years balance, got gap %.2f", reports[1].CashFlow.OpeningGap)
	}
}

func TestValidateLinkages_DetectsBrokenEquity(t *testing.T) {
	ledger := project(t, 1)
	cur := ledger.Year(2025).Clone()
	cur.Add(lineitem.Equity, 5_000)
	cur.Add(lineitem.BankDebt, -5_000)

	vals := reclass.MustDefaultModel().Evaluate(cur, ledger.Year(2024))
	r := ValidateLinkages(cur, ledger.Year(2024), vals, 2025, 0.01)

	if r.AllPassed {
		t.Fatal("expected failure after tampering with equity")
	}
	if r.Equity.IsLinked {
		t.Errorf("equity link should fail, difference %.2f", r.Equity.Difference)
	}
	if !r.Balance.IsBalanced {
		t.Errorf("balance still holds after moving 5k from bank debt to equity, got diff %.2f", r.Balance.Difference)
	}
	t.Logf("failed checks: %v", r.FailedChecks)
}

func TestValidateLinkages_DetectsUnbalancedSheet(t *testing.T) {
	ledger := project(t, 1)
	cur := ledger.Year(2025).Clone()
	cur.Add(lineitem.TradeReceivables, 1_000)

	vals := reclass.MustDefaultModel().Evaluate(cur, ledger.Year(2024))
	r := ValidateLinkages(cur, ledger.Year(2024), vals, 2025, 0.01)

	if r.Balance.IsBalanced {
		t.Error("expected balance check to fail")
	}
	if math.Abs(r.Balance.Difference-1_000) > 0.01 {
		t.Errorf("expected difference of 1000, got %.4f", r.Balance.Difference)
	}
}

func TestHistoricalOutliers(t *testing.T) {
	l := lineitem.Ledger{}
	l.Set(2021, lineitem.NetSales, 100)
	l.Set(2022, lineitem.NetSales, 110)
	l.Set(2023, lineitem.NetSales, 400)
	l.Set(2024, lineitem.NetSales, 0)

	out := HistoricalOutliers(l, 100)
	if len(out) != 2 {
		t.Fatalf("expected 2 outliers, got %d", len(out))
	}
	if out[0].Year != 2023 || out[1].Year != 2024 {
		t.Errorf("unexpected outlier years %d, %d", out[0].Year, out[1].Year)
	}
}

func TestSalesGrowth(t *testing.T) {
	l := lineitem.Ledger{}
	l.Set(2022, lineitem.NetSales, 100)
	l.Set(2023, lineitem.NetSales, 120)
	l.Set(2024, lineitem.NetSales, 144)

	growth := SalesGrowth(l, []int{2022, 2023, 2024})
	if len(growth) != 2 {
		t.Fatalf("expected 2 results, got %d", len(growth))
	}
	if growth[1].PriorYear != 2023 || growth[1].CurrentYear != 2024 {
		t.Errorf("unexpected years %d -> %d", growth[1].PriorYear, growth[1].CurrentYear)
	}
	if math.Abs(growth[1].ChangePct-20) > 1e-9 || growth[1].ChangeAbs != 24 {
		t.Errorf("expected +20%% (+24), got %.4f%% (%.2f)", growth[1].ChangePct, growth[1].ChangeAbs)
	}

	if cagr := SalesCAGR(l, []int{2022, 2023, 2024}); math.Abs(cagr-20) > 1e-9 {
		t.Errorf("expected CAGR 20, got %.6f", cagr)
	}
	if cagr := SalesCAGR(l, []int{2024}); cagr != 0 {
		t.Errorf("single year CAGR should be 0, got %.4f", cagr)
	}
	if got := SalesGrowth(l, nil); len(got) != 0 {
		t.Errorf("expected no results without years, got %d", len(got))
	}
}
