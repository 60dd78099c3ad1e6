package assumption

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v2"

	"bizplan/pkg/core/formula"
	"bizplan/pkg/core/lineitem"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Catalog is the validated, immutable list of assumption definitions indexed
// by ID. Build it once at startup and pass it where needed.
type Catalog struct {
	defs [numIDs]Definition
}

type catalogFile struct {
	Assumptions []Definition `yaml:"assumptions"`
}

// DefaultCatalog parses the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(defaultCatalogYAML)
}

// MustDefaultCatalog is DefaultCatalog for tests and main packages.
func MustDefaultCatalog() *Catalog {
	c, err := DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog parses a YAML catalog. Every id 0..Count-1 must be present
// exactly once and every formula may only reference known line item codes.
func LoadCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	c := &Catalog{}
	var seen [numIDs]bool
	for _, d := range file.Assumptions {
		if !d.ID.Valid() {
			return nil, fmt.Errorf("catalog: id %d out of range", int(d.ID))
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("catalog: duplicate id %d", int(d.ID))
		}
		if !d.Category.valid() {
			return nil, fmt.Errorf("catalog: id %d: unknown category %q", int(d.ID), d.Category)
		}
		if d.Formula != "" {
			expr, err := formula.Parse(d.Formula)
			if err != nil {
				return nil, fmt.Errorf("catalog: id %d: %w", int(d.ID), err)
			}
			for _, ref := range formula.Refs(expr) {
				if _, err := lineitem.ParseCode(ref.Name); err != nil {
					return nil, fmt.Errorf("catalog: id %d: %w", int(d.ID), err)
				}
			}
			d.Expr = expr
		}
		seen[d.ID] = true
		c.defs[d.ID] = d
	}
	for id, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("catalog: missing id %d", id)
		}
	}
	return c, nil
}

// Get returns the definition for id.
func (c *Catalog) Get(id ID) (Definition, bool) {
	if !id.Valid() {
		return Definition{}, false
	}
	return c.defs[id], true
}

// Default returns the catalog default for id, 0 for unknown ids.
func (c *Catalog) Default(id ID) float64 {
	d, _ := c.Get(id)
	return d.Default
}

// All returns the definitions in id order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, numIDs)
	copy(out, c.defs[:])
	return out
}
