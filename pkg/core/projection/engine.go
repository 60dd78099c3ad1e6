package projection

import (
	"math"

	"github.com/rs/zerolog"

	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/lineitem"
)

// Engine projects one year from the previous one. It keeps no state between
// calls; all mutable data lives in the ledgers passed in and returned.
type Engine struct {
	params Params
	log    zerolog.Logger
}

// NewEngine creates an engine. Zero fields of p take their defaults.
func NewEngine(p Params, log zerolog.Logger) *Engine {
	return &Engine{
		params: p.withDefaults(),
		log:    log.With().Str("component", "projection").Logger(),
	}
}

// Params returns the effective constants.
func (e *Engine) Params() Params { return e.params }

// ProjectYear solves the interest / financing circularity for one year.
// Interest is seeded from the prior bank debt and refined until two
// successive estimates differ by less than Tolerance. When MaxIterations is
// reached the last computed ledger is returned with Converged=false.
func (e *Engine) ProjectYear(prior *lineitem.YearLedger, d assumption.Drivers) YearResult {
	interest := prior.Get(lineitem.BankDebt) * d.Rate(assumption.BankInterestRate)

	var (
		ledger *lineitem.YearLedger
		next   float64
	)
	for i := 1; i <= e.params.MaxIterations; i++ {
		ledger, next = e.Iterate(prior, d, interest)
		if math.Abs(next-interest) < e.params.Tolerance {
			return YearResult{Ledger: ledger, Iterations: i, Converged: true, Interest: interest}
		}
		interest = next
	}

	e.log.Warn().
		Int("index", d.Index).
		Int("iterations", e.params.MaxIterations).
		Float64("interest", interest).
		Msg("interest did not converge, keeping last estimate")
	return YearResult{Ledger: ledger, Iterations: e.params.MaxIterations, Converged: false, Interest: interest}
}

// Iterate computes a complete year ledger for a given interest expense and
// returns it with the interest implied by the resulting financing position.
// It does not modify prior.
func (e *Engine) Iterate(prior *lineitem.YearLedger, d assumption.Drivers, interest float64) (*lineitem.YearLedger, float64) {
	p := e.params
	cur := lineitem.NewYearLedger()

	// Revenues
	sales := prior.Get(lineitem.NetSales) * (1 + d.Rate(assumption.SalesGrowth))
	cur.Set(lineitem.NetSales, sales)
	cur.Set(lineitem.FinishedGoodsVariation, 0)
	cur.Set(lineitem.OtherIncome, sales*d.Rate(assumption.OtherIncomeRatio))
	cur.Set(lineitem.CapitalizedCosts, sales*d.Rate(assumption.CapitalizedCostsRatio))

	// Inventory change is folded into cost of goods sold.
	inventory := prior.Get(lineitem.Inventory)
	if turnover := d.Value(assumption.InventoryTurnover); turnover > 0 {
		inventory = sales / turnover
	}
	delta := inventory - prior.Get(lineitem.Inventory)
	cur.Set(lineitem.Inventory, inventory)
	cur.Set(lineitem.Purchases, sales*d.Rate(assumption.COGSRatio)+delta)
	cur.Set(lineitem.RawMaterialsVariation, -delta)

	vp := ValueOfProduction(cur)
	cur.Set(lineitem.Services, vp*d.Rate(assumption.ServicesRatio))
	cur.Set(lineitem.OtherOperatingCharges, vp*d.Rate(assumption.OtherChargesRatio))
	cur.Set(lineitem.LeasedAssets, d.Value(assumption.LeasedAssetsAmount))
	cur.Set(lineitem.Personnel, vp*d.Rate(assumption.PersonnelRatio))

	valueAdded := vp - (cur.Get(lineitem.Purchases) + cur.Get(lineitem.Services) + cur.Get(lineitem.OtherOperatingCharges)) + delta
	ebitda := valueAdded - cur.Get(lineitem.LeasedAssets) - cur.Get(lineitem.Personnel)

	// Fixed assets roll forward: (opening + investment) less depreciation.
	intangibleDep := e.rollFixedAsset(cur, prior, lineitem.IntangibleAssets,
		d.Value(assumption.IntangibleInvestment), d.Rate(assumption.IntangibleDepreciationRate))
	tangibleDep := e.rollFixedAsset(cur, prior, lineitem.TangibleAssets,
		d.Value(assumption.TangibleInvestment), d.Rate(assumption.TangibleDepreciationRate))
	cur.Set(lineitem.Depreciation, intangibleDep+tangibleDep)
	cur.Set(lineitem.ProvisionsWriteDowns, d.Value(assumption.ProvisionsAmount))

	ebit := ebitda - cur.Get(lineitem.Depreciation) - cur.Get(lineitem.ProvisionsWriteDowns)

	// Financial and non-operating items
	cur.Set(lineitem.InterestExpense, interest)
	cur.Set(lineitem.FinancialIncome, d.Value(assumption.FinancialIncomeAmount))
	cur.Set(lineitem.OtherNonOperatingCosts, d.Value(assumption.OtherNonOperatingCosts))
	cur.Set(lineitem.OtherNonOperatingIncome, d.Value(assumption.OtherNonOperatingIncome))

	preTax := ebit + cur.Get(lineitem.FinancialIncome) - interest +
		cur.Get(lineitem.OtherNonOperatingIncome) - cur.Get(lineitem.OtherNonOperatingCosts)
	taxes := 0.0
	if preTax > 0 {
		taxes = preTax * p.TaxRate
	}
	cur.Set(lineitem.IncomeTaxes, taxes)
	cur.Set(lineitem.NetIncome, preTax-taxes)
	cur.Set(lineitem.Equity, prior.Get(lineitem.Equity)+cur.Get(lineitem.NetIncome))

	// Balance sheet stocks driven by assumptions
	cur.Set(lineitem.SubscribedCapital, prior.Get(lineitem.SubscribedCapital))
	cur.Set(lineitem.FinancialAssets, d.Value(assumption.FinancialAssetsAmount))
	cur.Set(lineitem.SeveranceFund, d.Value(assumption.SeveranceFundAmount))
	cur.Set(lineitem.RiskProvisions, d.Value(assumption.RiskProvisionsAmount))
	cur.Set(lineitem.OtherLongTermDebt, d.Value(assumption.OtherLongTermDebtAmount))

	// Working capital
	receivables := vp * p.VATFactor * d.Value(assumption.CustomerDays) / p.DayBasis
	purchasesBase := cur.Get(lineitem.Purchases) + cur.Get(lineitem.Services) + cur.Get(lineitem.OtherOperatingCharges)
	payables := purchasesBase * p.VATFactor * d.Value(assumption.SupplierDays) / p.DayBasis
	cur.Set(lineitem.TradeReceivables, receivables)
	cur.Set(lineitem.TradePayables, payables)
	cur.Set(lineitem.OtherReceivables, receivables*d.Rate(assumption.OtherReceivablesRatio))
	cur.Set(lineitem.OtherPayables, payables*d.Rate(assumption.OtherPayablesRatio))

	pfn := FinancialEquilibrium(cur, prior)

	avg := (NetFinancialPosition(prior) + pfn) / 2
	if avg <= 0 {
		avg = 0
	}
	return cur, avg * d.Rate(assumption.BankInterestRate)
}

// rollFixedAsset sets the closing balance of code and returns the
// depreciation charged on (opening + investment).
func (e *Engine) rollFixedAsset(cur, prior *lineitem.YearLedger, code lineitem.Code, investment, rate float64) float64 {
	gross := prior.Get(code) + investment
	dep := gross * rate
	cur.Set(code, gross-dep)
	return dep
}

// FinancialEquilibrium derives cash and bank debt so that the balance sheet
// balances, and returns the resulting net financial position (bank debt
// minus cash). Cash carries over from the prior year; bank debt absorbs the
// gap. A negative bank debt is clamped to 0 and the surplus moves to cash.
func FinancialEquilibrium(cur, prior *lineitem.YearLedger) float64 {
	target := InvestedCapital(cur) - cur.Get(lineitem.Equity)

	cash := prior.Get(lineitem.Cash)
	debt := target + cash
	if debt < 0 {
		cash -= debt
		debt = 0
	}
	cur.Set(lineitem.Cash, cash)
	cur.Set(lineitem.BankDebt, debt)
	return debt - cash
}

// ValueOfProduction is net sales plus other income plus capitalized costs.
func ValueOfProduction(y *lineitem.YearLedger) float64 {
	return y.Get(lineitem.NetSales) + y.Get(lineitem.OtherIncome) + y.Get(lineitem.CapitalizedCosts)
}

// NetWorkingCapital is receivables - payables + inventory + other
// receivables - other payables.
func NetWorkingCapital(y *lineitem.YearLedger) float64 {
	return y.Get(lineitem.TradeReceivables) - y.Get(lineitem.TradePayables) +
		y.Get(lineitem.Inventory) + y.Get(lineitem.OtherReceivables) - y.Get(lineitem.OtherPayables)
}

// InvestedCapital is fixed assets plus net working capital less the
// long-term non-financial liabilities.
func InvestedCapital(y *lineitem.YearLedger) float64 {
	fixed := y.Get(lineitem.SubscribedCapital) + y.Get(lineitem.IntangibleAssets) +
		y.Get(lineitem.TangibleAssets) + y.Get(lineitem.FinancialAssets)
	return fixed + NetWorkingCapital(y) -
		y.Get(lineitem.SeveranceFund) - y.Get(lineitem.RiskProvisions) - y.Get(lineitem.OtherLongTermDebt)
}

// NetFinancialPosition is bank debt minus cash.
func NetFinancialPosition(y *lineitem.YearLedger) float64 {
	return y.Get(lineitem.BankDebt) - y.Get(lineitem.Cash)
}

// ImpliedNetFinancialPosition is the PFN that balances y: invested capital
// minus equity. It equals NetFinancialPosition when y balances.
func ImpliedNetFinancialPosition(y *lineitem.YearLedger) float64 {
	return InvestedCapital(y) - y.Get(lineitem.Equity)
}

// TotalAssets sums the asset side of the reclassified balance sheet.
func TotalAssets(y *lineitem.YearLedger) float64 {
	return y.Get(lineitem.SubscribedCapital) + y.Get(lineitem.IntangibleAssets) +
		y.Get(lineitem.TangibleAssets) + y.Get(lineitem.FinancialAssets) +
		y.Get(lineitem.TradeReceivables) + y.Get(lineitem.Inventory) +
		y.Get(lineitem.OtherReceivables) + y.Get(lineitem.Cash)
}

// TotalLiabilitiesAndEquity sums the funding side.
func TotalLiabilitiesAndEquity(y *lineitem.YearLedger) float64 {
	return y.Get(lineitem.Equity) + y.Get(lineitem.SeveranceFund) +
		y.Get(lineitem.RiskProvisions) + y.Get(lineitem.OtherLongTermDebt) +
		y.Get(lineitem.BankDebt) + y.Get(lineitem.TradePayables) + y.Get(lineitem.OtherPayables)
}
