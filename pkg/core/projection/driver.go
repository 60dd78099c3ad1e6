package projection

import (
	"fmt"

	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/lineitem"
)

// DriverSource supplies the resolved assumptions for a projection index.
// *assumption.Resolver implements it.
type DriverSource interface {
	Drivers(index int) assumption.Drivers
}

// Driver runs the engine across the horizon, feeding each finished year into
// the next one.
type Driver struct {
	engine  *Engine
	ctx     Context
	source  DriverSource
	ledger  lineitem.Ledger
	results []YearResult
	seeded  bool
}

// NewDriver binds an engine to a context and an assumption source.
func NewDriver(engine *Engine, ctx Context, source DriverSource) *Driver {
	return &Driver{
		engine: engine,
		ctx:    ctx,
		source: source,
		ledger: lineitem.Ledger{},
	}
}

// Seed installs the base year. An empty ledger is rejected.
func (d *Driver) Seed(base *lineitem.YearLedger) error {
	if base.IsEmpty() {
		return fmt.Errorf("seed %d: %w", d.ctx.BaseYear, ErrEmptyBaseYear)
	}
	d.ledger = lineitem.Ledger{d.ctx.BaseYear: base.Clone()}
	d.results = nil
	d.seeded = true
	return nil
}

// ProjectAll projects every year of the horizon in increasing order and
// returns the ledger including the base year.
func (d *Driver) ProjectAll() (lineitem.Ledger, error) {
	if !d.seeded {
		return nil, ErrNotSeeded
	}
	d.results = d.results[:0]

	prior := d.ledger[d.ctx.BaseYear]
	for i, year := range d.ctx.Years() {
		res := d.engine.ProjectYear(prior, d.source.Drivers(i+1))
		res.Year = year
		d.ledger[year] = res.Ledger
		d.results = append(d.results, res)

		d.engine.log.Debug().
			Int("year", year).
			Int("iterations", res.Iterations).
			Bool("converged", res.Converged).
			Msg("year projected")
		prior = res.Ledger
	}
	return d.ledger, nil
}

// Results returns per-year convergence details of the last ProjectAll.
func (d *Driver) Results() []YearResult {
	out := make([]YearResult, len(d.results))
	copy(out, d.results)
	return out
}

// Context returns the run context.
func (d *Driver) Context() Context { return d.ctx }
