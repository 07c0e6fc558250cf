package catalog

// PriceFor returns the price of the variant matching unit under key. The
// boolean is false when the entry, the unit or the price is unknown; callers
// must then leave user input untouched.
func (c *Catalog) PriceFor(key, unit string) (float64, bool) {
	entry, ok := c.Entry(key)
	if !ok {
		return 0, false
	}
	v, ok := entry.variant(unit)
	if !ok || v.Price == nil {
		return 0, false
	}
	return *v.Price, true
}

// StockFor returns the stock of the variant matching unit under key. A nil
// result means stock is not tracked for it, which is not the same as zero.
func (c *Catalog) StockFor(key, unit string) *float64 {
	entry, ok := c.Entry(key)
	if !ok {
		return nil
	}
	v, ok := entry.variant(unit)
	if !ok || v.Stock == nil {
		return nil
	}
	stock := *v.Stock
	return &stock
}

// ResolveID returns the backend product id for (key, unit). Under
// ResolveFirstVariant an unmatched unit falls back to the entry's first
// variant; under ResolveStrict it fails.
func (c *Catalog) ResolveID(key, unit string) (string, bool) {
	entry, ok := c.Entry(key)
	if !ok {
		return "", false
	}
	if v, ok := entry.variant(unit); ok && v.ID != "" {
		return v.ID, true
	}
	if c.policy == ResolveFirstVariant && len(entry.Variants) > 0 && entry.Variants[0].ID != "" {
		return entry.Variants[0].ID, true
	}
	return "", false
}

// LabelForID maps a concrete product id back to its entry label.
func (c *Catalog) LabelForID(id string) (string, bool) {
	if c == nil {
		return "", false
	}
	label, ok := c.labels[id]
	return label, ok
}
