package lineitem

import (
	"encoding/json"
	"fmt"
	"sort"
)

// YearLedger holds the amount of every line item for one fiscal year.
// Unset items read as zero.
type YearLedger struct {
	values [numCodes]float64
}

// NewYearLedger returns an all-zero ledger.
func NewYearLedger() *YearLedger {
	return &YearLedger{}
}

// Get returns the amount for c, 0 for codes outside the vocabulary.
func (y *YearLedger) Get(c Code) float64 {
	if y == nil || !c.Valid() {
		return 0
	}
	return y.values[c]
}

// Set stores v for c. Codes outside the vocabulary are ignored.
func (y *YearLedger) Set(c Code, v float64) {
	if !c.Valid() {
		return
	}
	y.values[c] = v
}

// Add accumulates v onto c.
func (y *YearLedger) Add(c Code, v float64) {
	if !c.Valid() {
		return
	}
	y.values[c] += v
}

// Clone returns an independent copy.
func (y *YearLedger) Clone() *YearLedger {
	if y == nil {
		return NewYearLedger()
	}
	cp := *y
	return &cp
}

// IsEmpty reports whether every item is zero.
func (y *YearLedger) IsEmpty() bool {
	if y == nil {
		return true
	}
	for _, v := range y.values {
		if v != 0 {
			return false
		}
	}
	return true
}

// Values exports the ledger keyed by storage identifier. Every code is present.
func (y *YearLedger) Values() map[string]float64 {
	out := make(map[string]float64, numCodes)
	for c := Code(0); c < numCodes; c++ {
		out[c.String()] = y.Get(c)
	}
	return out
}

// MarshalJSON encodes the ledger as {"RI01": ..., ...}.
func (y *YearLedger) MarshalJSON() ([]byte, error) {
	return json.Marshal(y.Values())
}

// UnmarshalJSON decodes {"RI01": ...}; unknown keys are rejected.
func (y *YearLedger) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*y = YearLedger{}
	for k, v := range raw {
		c, err := ParseCode(k)
		if err != nil {
			return fmt.Errorf("decode ledger: %w", err)
		}
		y.values[c] = v
	}
	return nil
}

// Ledger maps fiscal years to their YearLedger.
type Ledger map[int]*YearLedger

// Get returns the amount of c in year, 0 when the year is absent.
func (l Ledger) Get(year int, c Code) float64 {
	return l[year].Get(c)
}

// Set stores v for (year, c), creating the year on first write.
func (l Ledger) Set(year int, c Code, v float64) {
	y, ok := l[year]
	if !ok {
		y = NewYearLedger()
		l[year] = y
	}
	y.Set(c, v)
}

// Year returns the ledger for year, or nil.
func (l Ledger) Year(year int) *YearLedger {
	return l[year]
}

// Years returns the years present, ascending.
func (l Ledger) Years() []int {
	years := make([]int, 0, len(l))
	for y := range l {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Export returns {year: {code: amount}} for the reporting boundary.
func (l Ledger) Export() map[int]map[string]float64 {
	out := make(map[int]map[string]float64, len(l))
	for year, y := range l {
		out[year] = y.Values()
	}
	return out
}
