package assumption

import (
	"fmt"
	"strconv"

	"bizplan/pkg/core/utils"
)

// DecodeOverrides reads an override document of the form
//
//	{ "0": { "2025": 5.0 }, "cogs_ratio": { "2025": 58 } }
//
// Keys are numeric ids or catalog keys. Strict JSON, repairable JSON and Hjson
// are all accepted.
func DecodeOverrides(data []byte, catalog *Catalog) (Overrides, error) {
	var raw map[string]map[string]float64
	if _, err := utils.SmartParse(string(data), &raw); err != nil {
		return nil, fmt.Errorf("decode overrides: %w", err)
	}

	byKey := make(map[string]ID, Count)
	if catalog != nil {
		for _, d := range catalog.All() {
			byKey[d.Key] = d.ID
		}
	}

	out := make(Overrides, len(raw))
	for k, years := range raw {
		id, ok := byKey[k]
		if !ok {
			parsed, err := ParseID(k)
			if err != nil {
				return nil, fmt.Errorf("decode overrides: %w", err)
			}
			id = parsed
		}
		for ys, v := range years {
			year, err := strconv.Atoi(ys)
			if err != nil {
				return nil, fmt.Errorf("decode overrides: assumption %d: year %q: %w", int(id), ys, err)
			}
			out.Set(id, year, v)
		}
	}
	return out, nil
}
