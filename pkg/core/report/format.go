// Package report renders reclassified statements and resolved assumptions
// as fixed-width text tables and as markdown/HTML documents.
package report

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount formats a currency amount rounded to units with '.' as the
// thousands separator. Zero renders as an empty cell.
func FormatAmount(v float64) string {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	s := FormatNumber(v, 0)
	if s == "0" {
		return ""
	}
	return s
}

// FormatNumber formats v with places decimals, '.' for thousands and ','
// for the decimal separator.
func FormatNumber(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/d"
	}
	fixed := decimal.NewFromFloat(v).Round(places).StringFixed(places)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")
	if strings.Trim(intPart+frac, "0") == "" {
		sign = ""
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}
