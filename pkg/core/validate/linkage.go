package validate

import (
	"math"

	"bizplan/pkg/core/lineitem"
	"bizplan/pkg/core/projection"
	"bizplan/pkg/core/reclass"
)

// =============================================================================
// CROSS-STATEMENT LINKAGE VALIDATION
// =============================================================================

// LinkageReport contains all cross-statement checks for one projected year.
type LinkageReport struct {
	Year         int            `json:"year"`
	Balance      *BalanceCheck  `json:"balance"`
	Equity       *EquityLink    `json:"equity"`
	CashFlow     *CashFlowCheck `json:"cash_flow"`
	AllPassed    bool           `json:"all_passed"`
	FailedChecks []string       `json:"failed_checks,omitempty"`
}

// EquityLink validates: equity[t] - equity[t-1] == net income[t].
type EquityLink struct {
	NetIncome    float64 `json:"net_income"`
	EquityChange float64 `json:"equity_change"`
	Difference   float64 `json:"difference"`
	IsLinked     bool    `json:"is_linked"`
	Tolerance    float64 `json:"tolerance"`
}

// ValidateLinkages checks one projected year against the year before it.
// vals are the reclassified values of cur (see reclass.Model.Evaluate).
func ValidateLinkages(cur, prior *lineitem.YearLedger, vals reclass.Values, year int, tolerance float64) *LinkageReport {
	report := &LinkageReport{
		Year:      year,
		AllPassed: true,
	}

	// 1. Assets = liabilities + equity
	equity := cur.Get(lineitem.Equity)
	report.Balance = CheckBalanceEquation(
		projection.TotalAssets(cur),
		projection.TotalLiabilitiesAndEquity(cur)-equity,
		equity,
		tolerance,
	)
	if !report.Balance.IsBalanced {
		report.AllPassed = false
		report.FailedChecks = append(report.FailedChecks, "Total assets = liabilities + equity")
	}

	// 2. Equity roll-forward
	ni := cur.Get(lineitem.NetIncome)
	change := equity - prior.Get(lineitem.Equity)
	report.Equity = &EquityLink{
		NetIncome:    ni,
		EquityChange: change,
		Difference:   change - ni,
		IsLinked:     math.Abs(change-ni) <= tolerance,
		Tolerance:    tolerance,
	}
	if !report.Equity.IsLinked {
		report.AllPassed = false
		report.FailedChecks = append(report.FailedChecks, "ΔEquity = net income")
	}

	// 3. Net cash flow explains the PFN change, opening from the PFN that
	// balances the prior year
	opening := projection.ImpliedNetFinancialPosition(prior)
	report.CashFlow = CheckCashFlowEquation(
		vals["net_cash_flow"],
		opening,
		projection.NetFinancialPosition(cur),
		tolerance,
	)
	report.CashFlow.OpeningGap = projection.NetFinancialPosition(prior) - opening
	if !report.CashFlow.IsBalanced {
		report.AllPassed = false
		report.FailedChecks = append(report.FailedChecks, "Net cash flow = -ΔPFN")
	}

	return report
}

// ValidateProjection runs ValidateLinkages for every year in years, each
// against year-1 in ledger.
func ValidateProjection(model *reclass.Model, ledger lineitem.Ledger, years []int, tolerance float64) []*LinkageReport {
	reports := make([]*LinkageReport, 0, len(years))
	for _, y := range years {
		cur, prior := ledger.Year(y), ledger.Year(y-1)
		vals := model.Evaluate(cur, prior)
		reports = append(reports, ValidateLinkages(cur, prior, vals, y, tolerance))
	}
	return reports
}

// AllPassed reports whether every report passed.
func AllPassed(reports []*LinkageReport) bool {
	for _, r := range reports {
		if !r.AllPassed {
			return false
		}
	}
	return true
}

// SalesGrowth returns the year-over-year net sales change between each pair
// of consecutive years. years must be sorted.
func SalesGrowth(ledger lineitem.Ledger, years []int) []*YoYResult {
	sales := make(map[int]float64, len(years))
	for _, y := range years {
		sales[y] = ledger.Get(y, lineitem.NetSales)
	}

	var out []*YoYResult
	for i := 1; i < len(years); i++ {
		yoy, err := YoYFromMap(sales, years[i], years[i-1], lineitem.NetSales.Label())
		if err != nil {
			continue
		}
		out = append(out, yoy)
	}
	return out
}

// SalesCAGR is the compound annual growth of net sales from the first to the
// last of years. It is 0 with fewer than two years or no sales in the first.
func SalesCAGR(ledger lineitem.Ledger, years []int) float64 {
	if len(years) < 2 {
		return 0
	}
	first, last := years[0], years[len(years)-1]
	return CalculateCAGR(ledger.Get(first, lineitem.NetSales), ledger.Get(last, lineitem.NetSales), last-first)
}

// HistoricalOutliers flags net sales movements larger than thresholdPct
// between consecutive historical years.
func HistoricalOutliers(ledger lineitem.Ledger, thresholdPct float64) []*OutlierCheck {
	var out []*OutlierCheck
	for _, yoy := range SalesGrowth(ledger, ledger.Years()) {
		check := CheckForOutlier(yoy.Label, yoy.CurrentValue, yoy.PriorValue, thresholdPct)
		check.Year = yoy.CurrentYear
		if check.IsOutlier {
			out = append(out, check)
		}
	}
	return out
}
