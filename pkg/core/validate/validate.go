// Package validate provides reusable checks over reclassified statements:
// growth measures, the balance equation, cash-flow reconciliation and
// outlier detection on historical inputs.
package validate

import (
	"fmt"
	"math"
)

// =============================================================================
// YEAR-OVER-YEAR (YoY) CALCULATIONS
// =============================================================================

// YoYResult holds the result of a YoY calculation.
type YoYResult struct {
	CurrentYear  int     `json:"current_year"`
	PriorYear    int     `json:"prior_year"`
	CurrentValue float64 `json:"current_value"`
	PriorValue   float64 `json:"prior_value"`
	ChangeAbs    float64 `json:"change_abs"`
	ChangePct    float64 `json:"change_pct"`
	Label        string  `json:"label"`
}

// CalculateYoY returns (current - prior) / prior * 100.
func CalculateYoY(current, prior float64) float64 {
	if prior == 0 {
		if current == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return (current - prior) / prior * 100
}

// YoYFromMap calculates YoY change from a year->value map.
func YoYFromMap(years map[int]float64, currentYear, priorYear int, label string) (*YoYResult, error) {
	current, okCur := years[currentYear]
	prior, okPri := years[priorYear]

	if !okCur {
		return nil, fmt.Errorf("missing data for year %d", currentYear)
	}
	if !okPri {
		return nil, fmt.Errorf("missing data for year %d", priorYear)
	}

	return &YoYResult{
		CurrentYear:  currentYear,
		PriorYear:    priorYear,
		CurrentValue: current,
		PriorValue:   prior,
		ChangeAbs:    current - prior,
		ChangePct:    CalculateYoY(current, prior),
		Label:        label,
	}, nil
}

// =============================================================================
// CAGR (Compound Annual Growth Rate)
// =============================================================================

// CalculateCAGR returns ((end / start) ^ (1/years) - 1) * 100.
func CalculateCAGR(startValue, endValue float64, years int) float64 {
	if startValue <= 0 || years <= 0 {
		return 0
	}
	return (math.Pow(endValue/startValue, 1.0/float64(years)) - 1) * 100
}

// =============================================================================
// BALANCE & CASH FLOW EQUATIONS
// =============================================================================

// BalanceCheck verifies total assets = liabilities + equity.
type BalanceCheck struct {
	TotalAssets      float64 `json:"total_assets"`
	TotalLiabilities float64 `json:"total_liabilities"`
	TotalEquity      float64 `json:"total_equity"`
	Difference       float64 `json:"difference"`
	IsBalanced       bool    `json:"is_balanced"`
	Tolerance        float64 `json:"tolerance"`
}

// CheckBalanceEquation validates A = L + E within tolerance.
func CheckBalanceEquation(assets, liabilities, equity, tolerance float64) *BalanceCheck {
	diff := assets - (liabilities + equity)
	return &BalanceCheck{
		TotalAssets:      assets,
		TotalLiabilities: liabilities,
		TotalEquity:      equity,
		Difference:       diff,
		IsBalanced:       math.Abs(diff) <= tolerance,
		Tolerance:        tolerance,
	}
}

// CashFlowCheck verifies that the net cash flow of the year explains the
// change of the net financial position: flow = -(closing - opening).
// OpeningGap is the stored opening PFN minus the one used for the check;
// it is non-zero when the opening balance sheet does not balance.
type CashFlowCheck struct {
	NetCashFlow float64 `json:"net_cash_flow"`
	PFNOpening  float64 `json:"pfn_opening"`
	PFNClosing  float64 `json:"pfn_closing"`
	Difference  float64 `json:"difference"`
	IsBalanced  bool    `json:"is_balanced"`
	Tolerance   float64 `json:"tolerance"`
	OpeningGap  float64 `json:"opening_gap,omitempty"`
}

// CheckCashFlowEquation validates net cash flow against the PFN change.
func CheckCashFlowEquation(netCashFlow, pfnOpening, pfnClosing, tolerance float64) *CashFlowCheck {
	diff := netCashFlow + (pfnClosing - pfnOpening)
	return &CashFlowCheck{
		NetCashFlow: netCashFlow,
		PFNOpening:  pfnOpening,
		PFNClosing:  pfnClosing,
		Difference:  diff,
		IsBalanced:  math.Abs(diff) <= tolerance,
		Tolerance:   tolerance,
	}
}

// =============================================================================
// OUTLIER DETECTION
// =============================================================================

// OutlierCheck identifies suspicious values.
type OutlierCheck struct {
	Item       string  `json:"item"`
	Year       int     `json:"year"`
	Value      float64 `json:"value"`
	PriorValue float64 `json:"prior_value"`
	ChangePct  float64 `json:"change_pct"`
	IsOutlier  bool    `json:"is_outlier"`
	Reason     string  `json:"reason,omitempty"`
	Threshold  float64 `json:"threshold"`
}

// CheckForOutlier flags a drop to zero or a change beyond thresholdPct.
func CheckForOutlier(item string, current, prior, thresholdPct float64) *OutlierCheck {
	changePct := CalculateYoY(current, prior)

	check := &OutlierCheck{
		Item:       item,
		Value:      current,
		PriorValue: prior,
		ChangePct:  changePct,
		Threshold:  thresholdPct,
	}

	if current == 0 && prior > 0 {
		check.IsOutlier = true
		check.Reason = "value dropped to zero"
		return check
	}

	if math.Abs(changePct) > thresholdPct {
		check.IsOutlier = true
		check.Reason = fmt.Sprintf("change of %.1f%% exceeds threshold of %.1f%%", changePct, thresholdPct)
	}
	return check
}
