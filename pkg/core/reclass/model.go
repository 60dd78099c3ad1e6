// Package reclass holds the display structures of the reclassified income
// statement (ce), balance sheet (sp), cash-flow statement (ff) and the
// profitability indicators (kpi), and evaluates their subtotals over
// projected or historical ledgers.
package reclass

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v2"

	"bizplan/pkg/core/formula"
	"bizplan/pkg/core/lineitem"
)

//go:embed structures.yaml
var defaultStructuresYAML []byte

// Statement keys of the default model.
const (
	IncomeStatement = "ce"
	BalanceSheet    = "sp"
	CashFlow        = "ff"
	Indicators      = "kpi"
)

// RowType distinguishes headers, raw line items and computed subtotals.
type RowType string

const (
	RowHeader   RowType = "header"
	RowDetail   RowType = "detail"
	RowComputed RowType = "computed"
)

// Row is one display line.
type Row struct {
	Key     string  `yaml:"key" json:"key"`
	Label   string  `yaml:"label" json:"label"`
	Type    RowType `yaml:"type" json:"type"`
	Code    string  `yaml:"code" json:"code,omitempty"`
	Formula string  `yaml:"formula" json:"formula,omitempty"`
	Bold    bool    `yaml:"bold" json:"bold"`
	Upper   bool    `yaml:"upper" json:"upper"`
	Hidden  bool    `yaml:"hidden" json:"hidden"`
	Percent bool    `yaml:"percent" json:"percent,omitempty"`

	code lineitem.Code
	expr formula.Expr
}

// Statement is an ordered list of rows.
type Statement struct {
	Key   string `yaml:"key" json:"key"`
	Title string `yaml:"title" json:"title"`
	Rows  []Row  `yaml:"rows" json:"rows"`
}

// Model is the validated set of statements. It is immutable after loading.
type Model struct {
	statements []Statement
}

type modelFile struct {
	Statements []Statement `yaml:"statements"`
}

// DefaultModel parses the embedded structures.
func DefaultModel() (*Model, error) {
	return LoadModel(defaultStructuresYAML)
}

// MustDefaultModel is DefaultModel that panics on error.
func MustDefaultModel() *Model {
	m, err := DefaultModel()
	if err != nil {
		panic(err)
	}
	return m
}

// LoadModel parses and validates statements. A computed row may only
// reference line item codes and rows defined before it; prev() may reference
// any row of any statement.
func LoadModel(data []byte) (*Model, error) {
	var file modelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("reclass: %w", err)
	}
	if len(file.Statements) == 0 {
		return nil, errors.New("reclass: no statements")
	}

	allKeys := make(map[string]bool)
	for _, st := range file.Statements {
		for _, r := range st.Rows {
			if r.Key == "" {
				return nil, fmt.Errorf("reclass: %s: row %q has no key", st.Key, r.Label)
			}
			if allKeys[r.Key] {
				return nil, fmt.Errorf("reclass: duplicate row key %q", r.Key)
			}
			allKeys[r.Key] = true
		}
	}

	defined := make(map[string]bool)
	for si := range file.Statements {
		st := &file.Statements[si]
		for ri := range st.Rows {
			r := &st.Rows[ri]
			switch r.Type {
			case RowHeader:
			case RowDetail:
				code, err := lineitem.ParseCode(r.Code)
				if err != nil {
					return nil, fmt.Errorf("reclass: row %q: %w", r.Key, err)
				}
				r.code = code
			case RowComputed:
				expr, err := formula.Parse(r.Formula)
				if err != nil {
					return nil, fmt.Errorf("reclass: row %q: %w", r.Key, err)
				}
				for _, ref := range formula.Refs(expr) {
					if _, err := lineitem.ParseCode(ref.Name); err == nil {
						continue
					}
					if ref.Lag > 0 && allKeys[ref.Name] {
						continue
					}
					if ref.Lag == 0 && defined[ref.Name] {
						continue
					}
					return nil, fmt.Errorf("reclass: row %q references %s before it is defined", r.Key, ref)
				}
				r.expr = expr
			default:
				return nil, fmt.Errorf("reclass: row %q: unknown type %q", r.Key, r.Type)
			}
			defined[r.Key] = true
		}
	}
	return &Model{statements: file.Statements}, nil
}

// Statements returns the statements in display order.
func (m *Model) Statements() []Statement {
	out := make([]Statement, len(m.statements))
	copy(out, m.statements)
	return out
}

// Statement returns the statement with key.
func (m *Model) Statement(key string) (Statement, bool) {
	for _, st := range m.statements {
		if st.Key == key {
			return st, true
		}
	}
	return Statement{}, false
}

// Values is the evaluated value of every row key (headers excluded).
type Values map[string]float64

// Evaluate computes every row for the year held in cur. prev is the year
// before and may be nil, in which case previous values read as 0. A formula
// that divides by zero yields 0 for that row.
func (m *Model) Evaluate(cur, prev *lineitem.YearLedger) Values {
	var prevVals Values
	if prev != nil {
		prevVals = m.evaluate(prev, nil, nil)
	}
	return m.evaluate(cur, prev, prevVals)
}

func (m *Model) evaluate(cur, prev *lineitem.YearLedger, prevVals Values) Values {
	vals := make(Values)
	env := formula.EnvFunc(func(name string, lag int) (float64, bool) {
		if code, err := lineitem.ParseCode(name); err == nil {
			if lag > 0 {
				return prev.Get(code), true
			}
			return cur.Get(code), true
		}
		if lag > 0 {
			return prevVals[name], true
		}
		v, ok := vals[name]
		return v, ok
	})

	for _, st := range m.statements {
		for _, r := range st.Rows {
			switch r.Type {
			case RowDetail:
				vals[r.Key] = cur.Get(r.code)
			case RowComputed:
				v, err := r.expr.Eval(env)
				if err != nil {
					v = 0
				}
				vals[r.Key] = v
			}
		}
	}
	return vals
}

// Line is a row with its values aligned to Table.Years.
type Line struct {
	Row    Row       `json:"row"`
	Values []float64 `json:"values"`
}

// Table is one statement evaluated over several years.
type Table struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Years []int  `json:"years"`
	Lines []Line `json:"lines"`
}

// Build evaluates statement key for each year of ledger listed in years.
// Hidden rows are left out. Each year uses year-1 from ledger as its
// previous year when present.
func (m *Model) Build(key string, ledger lineitem.Ledger, years []int) (Table, error) {
	st, ok := m.Statement(key)
	if !ok {
		return Table{}, fmt.Errorf("reclass: unknown statement %q", key)
	}

	perYear := make([]Values, len(years))
	for i, y := range years {
		perYear[i] = m.Evaluate(ledger.Year(y), ledger.Year(y-1))
	}

	t := Table{Key: st.Key, Title: st.Title, Years: append([]int(nil), years...)}
	for _, r := range st.Rows {
		if r.Hidden {
			continue
		}
		line := Line{Row: r}
		if r.Type != RowHeader {
			line.Values = make([]float64, len(years))
			for i := range years {
				line.Values[i] = perYear[i][r.Key]
			}
		}
		t.Lines = append(t.Lines, line)
	}
	return t, nil
}
