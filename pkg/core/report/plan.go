package report

import (
	"fmt"
	"io"

	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/lineitem"
	"bizplan/pkg/core/pipeline"
)

// Output formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// PlanTitle names the report of a run.
func PlanTitle(r *pipeline.Result) string {
	title := fmt.Sprintf("Business plan %s %d-%d", r.Client, r.BaseYear, r.BaseYear+len(r.Years))
	if r.Scenario != "" {
		title += " (" + r.Scenario + ")"
	}
	return title
}

// PlanGrids returns the statements of r, the net sales growth and the
// assumptions used for each projected year.
func PlanGrids(r *pipeline.Result, catalog *assumption.Catalog) []Grid {
	grids := make([]Grid, 0, len(r.Statements)+2)
	for _, t := range r.Statements {
		grids = append(grids, FromTable(t))
	}
	grids = append(grids, FromSalesGrowth(r))
	return append(grids, FromAssumptions(catalog, r.Assumptions, r.Years))
}

// FromSalesGrowth lists net sales for the base and projected years with the
// change on the year before. The title carries the CAGR over the plan.
func FromSalesGrowth(r *pipeline.Result) Grid {
	years := r.StatementYears()
	g := Grid{
		Title:  fmt.Sprintf("Sviluppo ricavi (CAGR %s%%)", FormatNumber(r.SalesCAGR, 2)),
		Header: yearHeader(years),
	}

	change := make(map[int]float64, len(r.SalesGrowth))
	for _, yoy := range r.SalesGrowth {
		change[yoy.CurrentYear] = yoy.ChangePct
	}
	sales := GridRow{Label: lineitem.NetSales.Label(), Cells: make([]string, len(years))}
	pct := GridRow{Label: "Variazione %", Cells: make([]string, len(years))}
	for i, y := range years {
		sales.Cells[i] = FormatAmount(r.Ledger.Get(y, lineitem.NetSales))
		if v, ok := change[y]; ok {
			pct.Cells[i] = FormatNumber(v, 2)
		}
	}
	g.Rows = append(g.Rows, sales, pct)
	return g
}

// WritePlan renders r to w in the given format.
func WritePlan(w io.Writer, r *pipeline.Result, catalog *assumption.Catalog, format string) error {
	title := PlanTitle(r)
	grids := PlanGrids(r, catalog)

	switch format {
	case FormatText, "":
		if _, err := fmt.Fprintf(w, "%s\n\n", title); err != nil {
			return err
		}
		for _, g := range grids {
			if err := WriteASCII(w, g); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		return nil
	case FormatMarkdown:
		_, err := io.WriteString(w, Document(title, grids...))
		return err
	case FormatHTML:
		page, err := HTML(title, grids...)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, page)
		return err
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
