package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"bizplan/pkg/core/lineitem"
)

// Columns a ledger CSV must carry. Others, such as descrizione, are ignored.
var csvColumns = []string{"cliente", "anno", "codice", "importo"}

// DecodeLedgerCSV reads rows of cliente, anno, codice, importo into one
// ledger per client. The header row is required and matched case-insensitively.
// The delimiter is ';' when the header contains one, ',' otherwise. Amounts
// accept either '.' or the Italian "1.234,56" form. Rows repeating the same
// client, year and code are summed.
func DecodeLedgerCSV(r io.Reader) (map[string]lineitem.Ledger, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read ledger csv: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	firstLine, _, _ := strings.Cut(text, "\n")

	cr := csv.NewReader(strings.NewReader(text))
	if strings.Contains(firstLine, ";") {
		cr.Comma = ';'
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("ledger csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	cols := make([]int, len(csvColumns))
	for i, name := range csvColumns {
		pos, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("ledger csv must have columns %s", strings.Join(csvColumns, ", "))
		}
		cols[i] = pos
	}

	out := make(map[string]lineitem.Ledger)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}
		field := func(i int) string {
			if cols[i] >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[cols[i]])
		}

		client := field(0)
		if client == "" {
			return nil, fmt.Errorf("ledger csv line %d: empty cliente", line)
		}
		year, err := strconv.Atoi(field(1))
		if err != nil {
			return nil, fmt.Errorf("ledger csv line %d: invalid anno %q", line, field(1))
		}
		code, err := lineitem.ParseCode(strings.ToUpper(field(2)))
		if err != nil {
			return nil, fmt.Errorf("ledger csv line %d: %w", line, err)
		}
		amount, err := parseAmount(field(3))
		if err != nil {
			return nil, fmt.Errorf("ledger csv line %d: invalid importo %q", line, field(3))
		}

		ledger, ok := out[client]
		if !ok {
			ledger = lineitem.Ledger{}
			out[client] = ledger
		}
		ledger.Set(year, code, ledger.Get(year, code)+amount)
	}
	return out, nil
}

// parseAmount reads "1234.56", "1234,56" or "1.234,56".
func parseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
