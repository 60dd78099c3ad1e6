package validate

import (
	"math"
	"testing"
)

func TestCalculateYoY(t *testing.T) {
	tests := []struct {
		name           string
		current, prior float64
		want           float64
	}{
		{"growth", 110, 100, 10},
		{"decline", 90, 100, -10},
		{"both zero", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateYoY(tt.current, tt.prior); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CalculateYoY(%v, %v) = %v, want %v", tt.current, tt.prior, got, tt.want)
			}
		})
	}
	if !math.IsInf(CalculateYoY(5, 0), 1) {
		t.Error("growth from zero should be +Inf")
	}
}

func TestYoYFromMap(t *testing.T) {
	years := map[int]float64{2024: 1_000_000, 2025: 1_030_000}
	r, err := YoYFromMap(years, 2025, 2024, "Ricavi")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(r.ChangePct-3) > 1e-9 {
		t.Errorf("expected 3%%, got %.4f", r.ChangePct)
	}
	if _, err := YoYFromMap(years, 2026, 2025, "Ricavi"); err == nil {
		t.Error("expected error for missing year")
	}
}

func TestCalculateCAGR(t *testing.T) {
	got := CalculateCAGR(100, 121, 2)
	if math.Abs(got-10) > 1e-9 {
		t.Errorf("expected 10%%, got %.6f", got)
	}
	if CalculateCAGR(0, 10, 2) != 0 {
		t.Error("zero start should give 0")
	}
}

func TestCheckBalanceEquation(t *testing.T) {
	if c := CheckBalanceEquation(1000, 600, 400, 0.01); !c.IsBalanced {
		t.Errorf("expected balanced, diff %.2f", c.Difference)
	}
	if c := CheckBalanceEquation(1000, 600, 300, 0.01); c.IsBalanced || c.Difference != 100 {
		t.Errorf("expected imbalance of 100, got %.2f", c.Difference)
	}
}

func TestCheckCashFlowEquation(t *testing.T) {
	// PFN falls from 300 to 250: the year generated 50 of cash.
	if c := CheckCashFlowEquation(50, 300, 250, 0.01); !c.IsBalanced {
		t.Errorf("expected reconciled, diff %.2f", c.Difference)
	}
	if c := CheckCashFlowEquation(-50, 300, 250, 0.01); c.IsBalanced {
		t.Error("expected mismatch")
	}
}

func TestCheckForOutlier(t *testing.T) {
	if c := CheckForOutlier("Ricavi", 0, 100, 50); !c.IsOutlier {
		t.Error("drop to zero should be flagged")
	}
	if c := CheckForOutlier("Ricavi", 130, 100, 50); c.IsOutlier {
		t.Errorf("30%% change should pass a 50%% threshold: %s", c.Reason)
	}
	if c := CheckForOutlier("Ricavi", 200, 100, 50); !c.IsOutlier {
		t.Error("100% change should be flagged")
	}
}
