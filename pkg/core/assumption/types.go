// Package assumption holds the catalog of forecasting drivers, the overrides a
// user supplies per projected year, and the resolver that turns both (plus
// historical averages) into the numbers the projection engine consumes.
package assumption

import (
	"fmt"
	"sort"
	"strconv"

	"bizplan/pkg/core/formula"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ID is the stable numeric identifier of an assumption (0..25).
type ID int

const (
	SalesGrowth                ID = iota // 0, % growth of net sales
	OtherIncomeRatio                     // 1, % of net sales
	OtherChargesRatio                    // 2, % of value of production
	InventoryTurnover                    // 3, sales / inventory
	COGSRatio                            // 4, % of net sales
	ServicesRatio                        // 5, % of value of production
	CustomerDays                         // 6
	SupplierDays                         // 7
	CapitalizedCostsRatio                // 8, % of net sales
	OtherReceivablesRatio                // 9, % of trade receivables
	OtherPayablesRatio                   // 10, % of trade payables
	BankInterestRate                     // 11, % on average bank debt
	PersonnelRatio                       // 12, % of value of production
	LeasedAssetsAmount                   // 13
	IntangibleDepreciationRate           // 14
	TangibleDepreciationRate             // 15
	IntangibleInvestment                 // 16
	TangibleInvestment                   // 17
	FinancialAssetsAmount                // 18
	SeveranceFundAmount                  // 19
	RiskProvisionsAmount                 // 20
	OtherLongTermDebtAmount              // 21
	ProvisionsAmount                     // 22
	FinancialIncomeAmount                // 23
	OtherNonOperatingCosts               // 24
	OtherNonOperatingIncome              // 25

	numIDs
)

// Count is the number of catalog entries.
const Count = int(numIDs)

// Valid reports whether id is part of the catalog range.
func (id ID) Valid() bool { return id >= 0 && id < numIDs }

// AllIDs returns 0..Count-1.
func AllIDs() []ID {
	out := make([]ID, numIDs)
	for i := range out {
		out[i] = ID(i)
	}
	return out
}

// ParseID accepts the decimal form used as a map key in stored scenarios.
func ParseID(s string) (ID, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("assumption id %q: %w", s, err)
	}
	id := ID(n)
	if !id.Valid() {
		return 0, fmt.Errorf("assumption id %d out of range", n)
	}
	return id, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

// Category controls how historical years are averaged and displayed.
type Category string

const (
	// CategoryPercentage averages a ratio and scales it by 100.
	CategoryPercentage Category = "percentage"
	// CategoryGrowth averages year-over-year growth, already expressed in %.
	CategoryGrowth Category = "percentage-of-growth"
	// CategoryRatio averages a plain ratio (turnover).
	CategoryRatio Category = "ratio"
	// CategoryDays averages a day count.
	CategoryDays Category = "day-count"
	// CategoryAmount averages an absolute amount.
	CategoryAmount Category = "absolute-amount"
)

func (c Category) valid() bool {
	switch c {
	case CategoryPercentage, CategoryGrowth, CategoryRatio, CategoryDays, CategoryAmount:
		return true
	}
	return false
}

// IsPercent reports whether resolved values are expressed in percent.
func (c Category) IsPercent() bool {
	return c == CategoryPercentage || c == CategoryGrowth
}

// =============================================================================
// DEFINITION
// =============================================================================

// Definition is one catalog entry.
type Definition struct {
	ID          ID       `yaml:"id" json:"id"`
	Key         string   `yaml:"key" json:"key"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Category    Category `yaml:"category" json:"category"`
	Unit        string   `yaml:"unit" json:"unit"`
	Formula     string   `yaml:"formula" json:"formula,omitempty"`
	Default     float64  `yaml:"default" json:"default"`

	// Expr is the parsed Formula; nil when the assumption has no historical
	// formula and always falls back to Default.
	Expr formula.Expr `yaml:"-" json:"-"`
}

// HasFormula reports whether history can be used for this assumption.
func (d Definition) HasFormula() bool { return d.Expr != nil }

// =============================================================================
// HISTORICAL AVERAGES & OVERRIDES
// =============================================================================

// HistoricalAverages maps assumptions to their averaged historical value.
// Percent categories are already scaled by 100.
type HistoricalAverages map[ID]float64

// Overrides maps assumption -> absolute fiscal year -> user value.
type Overrides map[ID]map[int]float64

// Set records v for (id, year).
func (o Overrides) Set(id ID, year int, v float64) {
	byYear, ok := o[id]
	if !ok {
		byYear = make(map[int]float64)
		o[id] = byYear
	}
	byYear[year] = v
}

// Get returns the override for (id, year).
func (o Overrides) Get(id ID, year int) (float64, bool) {
	v, ok := o[id][year]
	return v, ok
}

// Years returns the override years recorded for id, ascending.
func (o Overrides) Years(id ID) []int {
	byYear := o[id]
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Clone returns a deep copy.
func (o Overrides) Clone() Overrides {
	out := make(Overrides, len(o))
	for id, byYear := range o {
		cp := make(map[int]float64, len(byYear))
		for y, v := range byYear {
			cp[y] = v
		}
		out[id] = cp
	}
	return out
}

// Complete fills every year of the horizon for each assumption that already
// has at least one override, using fill for the missing years. Afterwards the
// per-assumption year list matches the horizon, so index lookups line up with
// projection years.
func (o Overrides) Complete(years []int, fill func(ID) float64) {
	for id, byYear := range o {
		for _, y := range years {
			if _, ok := byYear[y]; !ok {
				byYear[y] = fill(id)
			}
		}
	}
}

// Validate rejects ids outside the catalog.
func (o Overrides) Validate() error {
	for id := range o {
		if !id.Valid() {
			return fmt.Errorf("override for unknown assumption %d", int(id))
		}
	}
	return nil
}
