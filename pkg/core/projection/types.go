package projection

import (
	"errors"

	"bizplan/pkg/core/lineitem"
)

var (
	// ErrEmptyBaseYear is returned when the base year has no data to project from.
	ErrEmptyBaseYear = errors.New("base year ledger is empty")
	// ErrNotSeeded is returned by ProjectAll before Seed succeeded.
	ErrNotSeeded = errors.New("driver has not been seeded")
)

// Params holds the fixed business constants of the model. Zero fields take
// the DefaultParams value, so a zero TaxRate cannot be expressed.
type Params struct {
	TaxRate       float64 `yaml:"tax_rate" json:"tax_rate"`             // on positive pre-tax result
	VATFactor     float64 `yaml:"vat_factor" json:"vat_factor"`         // gross-up of receivables/payables
	DayBasis      float64 `yaml:"day_basis" json:"day_basis"`           // days per year
	Tolerance     float64 `yaml:"tolerance" json:"tolerance"`           // interest convergence, currency units
	MaxIterations int     `yaml:"max_iterations" json:"max_iterations"` // per year
}

// DefaultParams returns 28% tax, 22% VAT, 365 days, 0.01 tolerance, 100 iterations.
func DefaultParams() Params {
	return Params{
		TaxRate:       0.28,
		VATFactor:     1.22,
		DayBasis:      365,
		Tolerance:     0.01,
		MaxIterations: 100,
	}
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.TaxRate == 0 {
		p.TaxRate = def.TaxRate
	}
	if p.VATFactor == 0 {
		p.VATFactor = def.VATFactor
	}
	if p.DayBasis <= 0 {
		p.DayBasis = def.DayBasis
	}
	if p.Tolerance <= 0 {
		p.Tolerance = def.Tolerance
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = def.MaxIterations
	}
	return p
}

// YearResult is the outcome of projecting one year.
type YearResult struct {
	Year       int                  `json:"year"`
	Ledger     *lineitem.YearLedger `json:"ledger"`
	Iterations int                  `json:"iterations"`
	Converged  bool                 `json:"converged"`
	Interest   float64              `json:"interest"`
}

// Context fixes the client, the base year and the horizon of a run.
type Context struct {
	Client   string `json:"client"`
	BaseYear int    `json:"base_year"`
	Horizon  int    `json:"horizon"`
}

// NewContext builds a projection context.
func NewContext(client string, baseYear, horizon int) Context {
	return Context{Client: client, BaseYear: baseYear, Horizon: horizon}
}

// Years returns the projected years, BaseYear+1 .. BaseYear+Horizon.
func (c Context) Years() []int {
	if c.Horizon <= 0 {
		return nil
	}
	years := make([]int, c.Horizon)
	for i := range years {
		years[i] = c.BaseYear + i + 1
	}
	return years
}

// Index returns the 1-based projection index of year, 0 when outside the horizon.
func (c Context) Index(year int) int {
	i := year - c.BaseYear
	if i < 1 || i > c.Horizon {
		return 0
	}
	return i
}
