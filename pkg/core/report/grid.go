package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/reclass"
	"bizplan/pkg/core/utils"
)

// Grid is a rendered-ready table: one label column and formatted cells.
type Grid struct {
	Title  string
	Header []string // column titles after the label column
	Rows   []GridRow
}

// GridRow is one line of a Grid. Section rows carry no cells.
type GridRow struct {
	Label   string
	Cells   []string
	Bold    bool
	Section bool
}

// FromTable converts a reclassified statement into a Grid. Percent rows show
// two decimals, every other row is an amount.
func FromTable(t reclass.Table) Grid {
	g := Grid{Title: t.Title, Header: yearHeader(t.Years)}
	for _, line := range t.Lines {
		label := line.Row.Label
		if line.Row.Upper {
			label = strings.ToUpper(label)
		}
		row := GridRow{Label: label, Bold: line.Row.Bold, Section: line.Row.Type == reclass.RowHeader}
		if !row.Section {
			row.Cells = make([]string, len(line.Values))
			for i, v := range line.Values {
				if line.Row.Percent {
					row.Cells[i] = FormatNumber(v, 2)
				} else {
					row.Cells[i] = FormatAmount(v)
				}
			}
		}
		g.Rows = append(g.Rows, row)
	}
	return g
}

// FromAssumptions lists the resolved value of every catalog assumption for
// each year. Percent and day values show two decimals, amounts none.
func FromAssumptions(catalog *assumption.Catalog, values map[int]map[assumption.ID]float64, years []int) Grid {
	g := Grid{Title: "Ipotesi", Header: append(yearHeader(years), "u.m.")}
	for _, def := range catalog.All() {
		row := GridRow{Label: def.Name, Cells: make([]string, 0, len(years)+1)}
		for _, y := range years {
			v := values[y][def.ID]
			if def.Category == assumption.CategoryAmount {
				row.Cells = append(row.Cells, FormatNumber(v, 0))
			} else {
				row.Cells = append(row.Cells, FormatNumber(v, 2))
			}
		}
		row.Cells = append(row.Cells, def.Unit)
		g.Rows = append(g.Rows, row)
	}
	return g
}

func yearHeader(years []int) []string {
	out := make([]string, len(years))
	for i, y := range years {
		out[i] = strconv.Itoa(y)
	}
	return out
}

// =============================================================================
// TEXT
// =============================================================================

// WriteASCII writes g as a boxed fixed-width table:
//
//	+--------------------+-----------+
//	| Voce               |      2025 |
//	+--------------------+-----------+
//	| Totale attivo      | 1.234.567 |
func WriteASCII(w io.Writer, g Grid) error {
	header := append([]string{"Voce"}, g.Header...)
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, r := range g.Rows {
		widths[0] = max(widths[0], utf8.RuneCountInString(r.Label))
		for i, c := range r.Cells {
			if i+1 < len(widths) {
				widths[i+1] = max(widths[i+1], utf8.RuneCountInString(c))
			}
		}
	}

	sep := separator(widths)
	var b strings.Builder
	if g.Title != "" {
		b.WriteString(g.Title + "\n")
	}
	b.WriteString(sep)
	b.WriteString(formatRow(header, widths))
	b.WriteString(sep)
	for _, r := range g.Rows {
		cells := append([]string{r.Label}, r.Cells...)
		b.WriteString(formatRow(cells, widths))
	}
	b.WriteString(sep)

	_, err := io.WriteString(w, b.String())
	return err
}

// ASCII returns WriteASCII output as a string.
func ASCII(g Grid) string {
	var b strings.Builder
	_ = WriteASCII(&b, g)
	return b.String()
}

func separator(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w+2)
	}
	return "+" + strings.Join(parts, "+") + "+\n"
}

func formatRow(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		pad := strings.Repeat(" ", w-utf8.RuneCountInString(cell))
		if i == 0 {
			parts[i] = " " + cell + pad + " "
		} else {
			parts[i] = " " + pad + cell + " "
		}
	}
	return "|" + strings.Join(parts, "|") + "|\n"
}

// =============================================================================
// MARKDOWN / HTML
// =============================================================================

// Markdown renders g as a level-2 heading followed by a pipe table. Bold
// rows are emphasised; section rows keep their label with empty cells.
func Markdown(g Grid) string {
	var b strings.Builder
	if g.Title != "" {
		fmt.Fprintf(&b, "## %s\n\n", escapeCell(g.Title))
	}

	b.WriteString("| Voce |")
	for _, h := range g.Header {
		b.WriteString(" " + escapeCell(h) + " |")
	}
	b.WriteString("\n| --- |")
	for range g.Header {
		b.WriteString(" ---: |")
	}
	b.WriteString("\n")

	for _, r := range g.Rows {
		label := escapeCell(r.Label)
		if r.Bold && label != "" {
			label = "**" + label + "**"
		}
		b.WriteString("| " + label + " |")
		for i := range g.Header {
			cell := ""
			if i < len(r.Cells) {
				cell = escapeCell(r.Cells[i])
			}
			if r.Bold && cell != "" {
				cell = "**" + cell + "**"
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Document joins grids into one markdown document under a level-1 title.
func Document(title string, grids ...Grid) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	for _, g := range grids {
		b.WriteString(Markdown(g))
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders the markdown document of grids as a standalone HTML page.
func HTML(title string, grids ...Grid) (string, error) {
	body, err := utils.RenderMarkdown(Document(title, grids...))
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return fmt.Sprintf(htmlPage, escapeHTML(title), body), nil
}

const htmlPage = `<!DOCTYPE html>
<html lang="it">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #ccc; padding: 4px 8px; }
td:not(:first-child) { text-align: right; font-variant-numeric: tabular-nums; }
</style>
</head>
<body>
%s</body>
</html>
`

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
