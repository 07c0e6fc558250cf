package catalog

// OptionKind tags a selection option.
type OptionKind int

const (
	KindProduct OptionKind = iota + 1
	KindUnit
	KindCategory
	KindParty
)

func (k OptionKind) String() string {
	switch k {
	case KindProduct:
		return "product"
	case KindUnit:
		return "unit"
	case KindCategory:
		return "category"
	case KindParty:
		return "party"
	default:
		return "unknown"
	}
}

// SelectOption is implemented by every option type offered to a picker.
type SelectOption interface {
	Kind() OptionKind
	Value() string
	Label() string
}

// ProductOption selects a catalog entry.
type ProductOption struct {
	Key  string `json:"key"`
	Name string `json:"label"`
}

func (o ProductOption) Kind() OptionKind { return KindProduct }
func (o ProductOption) Value() string    { return o.Key }
func (o ProductOption) Label() string    { return o.Name }

// UnitOption selects a unit within an entry.
type UnitOption struct {
	Unit string `json:"unit"`
}

func (o UnitOption) Kind() OptionKind { return KindUnit }
func (o UnitOption) Value() string    { return o.Unit }
func (o UnitOption) Label() string    { return o.Unit }

// CategoryOption attaches a reporting category to a line.
type CategoryOption struct {
	ID   string `json:"id"`
	Name string `json:"label"`
}

func (o CategoryOption) Kind() OptionKind { return KindCategory }
func (o CategoryOption) Value() string    { return o.ID }
func (o CategoryOption) Label() string    { return o.Name }

// PartyOption selects a customer or supplier.
type PartyOption struct {
	ID   string `json:"id"`
	Name string `json:"label"`
}

func (o PartyOption) Kind() OptionKind { return KindParty }
func (o PartyOption) Value() string    { return o.ID }
func (o PartyOption) Label() string    { return o.Name }

// ProductOptions lists one option per entry in catalog order.
func (c *Catalog) ProductOptions() []ProductOption {
	if c == nil {
		return nil
	}
	out := make([]ProductOption, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, ProductOption{Key: e.Key, Name: e.Label})
	}
	return out
}

// UnitOptions lists the units available for key.
func (c *Catalog) UnitOptions(key string) []UnitOption {
	entry, ok := c.Entry(key)
	if !ok {
		return nil
	}
	out := make([]UnitOption, 0, len(entry.Units))
	for _, u := range entry.Units {
		out = append(out, UnitOption{Unit: u})
	}
	return out
}
