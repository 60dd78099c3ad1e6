package assumption

// Resolver answers "what value does assumption id take in projected year
// index", with precedence override > historical average > catalog default.
// It is a read-only view; callers build a new one when inputs change.
type Resolver struct {
	catalog   *Catalog
	averages  HistoricalAverages
	overrides Overrides
}

// NewResolver wires the three sources. averages and overrides may be nil.
func NewResolver(catalog *Catalog, averages HistoricalAverages, overrides Overrides) *Resolver {
	return &Resolver{catalog: catalog, averages: averages, overrides: overrides}
}

// Resolve returns the value of id for the 1-based projection index.
//
// Overrides are stored by absolute year. The index selects the index-th entry
// of that assumption's own sorted override years; an index past the end
// resolves to 0. Assumptions without any override fall through to the
// historical average and then to the catalog default. Unknown ids resolve
// to 0.
func (r *Resolver) Resolve(id ID, index int) float64 {
	if r == nil || !id.Valid() {
		return 0
	}

	if byYear := r.overrides[id]; len(byYear) > 0 {
		years := r.overrides.Years(id)
		if index < 1 || index > len(years) {
			return 0
		}
		return byYear[years[index-1]]
	}

	if v, ok := r.averages[id]; ok {
		return v
	}
	if r.catalog == nil {
		return 0
	}
	return r.catalog.Default(id)
}

// Drivers resolves every assumption for one projection index.
func (r *Resolver) Drivers(index int) Drivers {
	d := Drivers{Index: index}
	for id := ID(0); id < numIDs; id++ {
		d.values[id] = r.Resolve(id, index)
	}
	return d
}

// Drivers is the full set of resolved assumption values for one year.
type Drivers struct {
	Index  int
	values [numIDs]float64
}

// NewDrivers builds a driver set directly from values, for tests and tools.
func NewDrivers(values map[ID]float64) Drivers {
	var d Drivers
	for id, v := range values {
		d.Set(id, v)
	}
	return d
}

// Value returns the resolved value of id as stored (percent for percent
// categories).
func (d Drivers) Value(id ID) float64 {
	if !id.Valid() {
		return 0
	}
	return d.values[id]
}

// Rate returns Value(id)/100.
func (d Drivers) Rate(id ID) float64 { return d.Value(id) / 100 }

// Set overwrites the value of id.
func (d *Drivers) Set(id ID, v float64) {
	if id.Valid() {
		d.values[id] = v
	}
}

// Map exports the values keyed by id.
func (d Drivers) Map() map[ID]float64 {
	out := make(map[ID]float64, numIDs)
	for id := ID(0); id < numIDs; id++ {
		out[id] = d.values[id]
	}
	return out
}
