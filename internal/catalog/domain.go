package catalog

// ProductRecord is a product row as returned by the product source. Several
// records may share a name and differ only by unit, price or stock.
type ProductRecord struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Unit    string   `json:"unit"`
	Units   []string `json:"units,omitempty"`
	Price   *float64 `json:"price,omitempty"`
	Stock   *float64 `json:"stock,omitempty"`
	GroupID string   `json:"group_id,omitempty"`
}

// Variant is a concrete (unit, price, stock) combination under one entry.
type Variant struct {
	ID    string   `json:"id"`
	Unit  string   `json:"unit"`
	Price *float64 `json:"price,omitempty"`
	Stock *float64 `json:"stock,omitempty"`
}

// Entry aggregates every variant sharing a grouping key.
type Entry struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Units    []string  `json:"units"`
	Variants []Variant `json:"variants"`
}

// HasUnit reports whether unit is one of the entry's units.
func (e Entry) HasUnit(unit string) bool {
	for _, u := range e.Units {
		if u == unit {
			return true
		}
	}
	return false
}

// DefaultUnit is the first unit seen for the entry, or "" when it has none.
func (e Entry) DefaultUnit() string {
	if len(e.Units) == 0 {
		return ""
	}
	return e.Units[0]
}

func (e Entry) variant(unit string) (Variant, bool) {
	for _, v := range e.Variants {
		if v.Unit == unit {
			return v, true
		}
	}
	return Variant{}, false
}

// Grouping selects how records are folded into entries.
type Grouping string

const (
	// GroupByName folds records by trimmed, lower-cased name.
	GroupByName Grouping = "name"
	// GroupByID folds records by their explicit group id, falling back to the
	// name key for records without one.
	GroupByID Grouping = "group_id"
)

// ResolvePolicy controls ResolveID when no variant matches the unit exactly.
type ResolvePolicy string

const (
	// ResolveStrict fails resolution unless a variant matches the unit.
	ResolveStrict ResolvePolicy = "strict"
	// ResolveFirstVariant falls back to the first variant under the key.
	ResolveFirstVariant ResolvePolicy = "first"
)

// ParseGrouping converts a configuration value into a Grouping.
func ParseGrouping(s string) (Grouping, bool) {
	switch Grouping(s) {
	case GroupByName, "":
		return GroupByName, true
	case GroupByID:
		return GroupByID, true
	}
	return "", false
}

// ParseResolvePolicy converts a configuration value into a ResolvePolicy.
func ParseResolvePolicy(s string) (ResolvePolicy, bool) {
	switch ResolvePolicy(s) {
	case ResolveStrict, "":
		return ResolveStrict, true
	case ResolveFirstVariant:
		return ResolveFirstVariant, true
	}
	return "", false
}
