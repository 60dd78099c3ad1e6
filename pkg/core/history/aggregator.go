// Package history turns stored ledger rows into per-year line item amounts
// and derives the historical average of every assumption that has a formula.
package history

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/formula"
	"bizplan/pkg/core/lineitem"
)

// Row is one stored amount, already mapped to a line item code.
type Row struct {
	Year   int     `json:"year"`
	Code   string  `json:"code"`
	Amount float64 `json:"amount"`
}

// Source reads historical rows for a client. A nil or empty years slice
// means every available year.
type Source interface {
	LoadRows(ctx context.Context, client string, years []int) ([]Row, error)
}

// Aggregator computes historical averages against an assumption catalog.
type Aggregator struct {
	catalog *assumption.Catalog
	log     zerolog.Logger
}

// NewAggregator creates an aggregator bound to catalog.
func NewAggregator(catalog *assumption.Catalog, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		catalog: catalog,
		log:     log.With().Str("component", "history").Logger(),
	}
}

// LoadHistory sums rows per year and code. Unknown codes are skipped with a
// warning; only storage errors are returned.
func (a *Aggregator) LoadHistory(ctx context.Context, src Source, client string, years []int) (lineitem.Ledger, error) {
	rows, err := src.LoadRows(ctx, client, years)
	if err != nil {
		return nil, fmt.Errorf("load history for %q: %w", client, err)
	}
	return a.FromRows(rows), nil
}

// FromRows aggregates rows into a ledger.
func (a *Aggregator) FromRows(rows []Row) lineitem.Ledger {
	ledger := lineitem.Ledger{}
	skipped := 0
	for _, r := range rows {
		code, err := lineitem.ParseCode(r.Code)
		if err != nil {
			skipped++
			a.log.Debug().Int("year", r.Year).Str("code", r.Code).Msg("skipping row with unknown line item code")
			continue
		}
		if ledger[r.Year] == nil {
			ledger[r.Year] = lineitem.NewYearLedger()
		}
		ledger[r.Year].Add(code, r.Amount)
	}
	if skipped > 0 {
		a.log.Warn().Int("skipped", skipped).Msg("rows with unknown line item codes ignored")
	}
	return ledger
}

// ComputeAverages evaluates every formula assumption over years (all ledger
// years when empty). Years where a formula divides by zero are dropped;
// an assumption with no usable year gets its catalog default. Assumptions
// without a formula are left out so they resolve straight to the default.
func (a *Aggregator) ComputeAverages(ledger lineitem.Ledger, years []int) assumption.HistoricalAverages {
	if len(years) == 0 {
		years = ledger.Years()
	} else {
		years = append([]int(nil), years...)
		sort.Ints(years)
	}

	out := make(assumption.HistoricalAverages)
	for _, def := range a.catalog.All() {
		if !def.HasFormula() {
			continue
		}

		var samples []float64
		if def.Category == assumption.CategoryGrowth {
			samples = a.growthSamples(def, ledger, years)
		} else {
			samples = a.levelSamples(def, ledger, years)
		}

		if len(samples) == 0 {
			a.log.Debug().Int("assumption", int(def.ID)).Msg("no usable historical year, using default")
			out[def.ID] = def.Default
			continue
		}

		avg := stat.Mean(samples, nil)
		if def.Category == assumption.CategoryPercentage {
			avg *= 100
		}
		out[def.ID] = round2(avg)
	}
	return out
}

func (a *Aggregator) levelSamples(def assumption.Definition, ledger lineitem.Ledger, years []int) []float64 {
	samples := make([]float64, 0, len(years))
	for _, y := range years {
		v, err := def.Expr.Eval(yearEnv(ledger, y))
		if err != nil {
			a.log.Debug().Err(err).Int("assumption", int(def.ID)).Int("year", y).Msg("year dropped")
			continue
		}
		samples = append(samples, v)
	}
	return samples
}

// growthSamples returns the % change of the formula value between
// consecutive years. Pairs with an unevaluable side or a zero base are skipped.
func (a *Aggregator) growthSamples(def assumption.Definition, ledger lineitem.Ledger, years []int) []float64 {
	var samples []float64
	for i := 1; i < len(years); i++ {
		prev, err1 := def.Expr.Eval(yearEnv(ledger, years[i-1]))
		cur, err2 := def.Expr.Eval(yearEnv(ledger, years[i]))
		if err1 != nil || err2 != nil || prev == 0 {
			a.log.Debug().Int("assumption", int(def.ID)).Int("year", years[i]).Msg("growth pair dropped")
			continue
		}
		samples = append(samples, (cur-prev)/prev*100)
	}
	return samples
}

// yearEnv exposes one ledger year to formula evaluation. Missing codes and
// years, including the year before the first loaded one, read as 0.
func yearEnv(ledger lineitem.Ledger, year int) formula.Env {
	return formula.EnvFunc(func(name string, lag int) (float64, bool) {
		code, err := lineitem.ParseCode(name)
		if err != nil {
			return 0, false
		}
		return ledger.Get(year-lag, code), true
	})
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
