// Package catalog folds flat product records into a name-keyed variant
// catalog and resolves (key, unit) selections back to concrete products.
package catalog

import "strings"

// Catalog is an immutable index of entries. It is rebuilt wholesale whenever
// the product list is reloaded.
type Catalog struct {
	entries  []Entry
	index    map[string]int
	labels   map[string]string
	grouping Grouping
	policy   ResolvePolicy
}

// Option customises Build.
type Option func(*Catalog)

// WithGrouping selects the grouping scheme.
func WithGrouping(g Grouping) Option {
	return func(c *Catalog) {
		if g != "" {
			c.grouping = g
		}
	}
}

// WithResolvePolicy selects how ResolveID treats unmatched units.
func WithResolvePolicy(p ResolvePolicy) Option {
	return func(c *Catalog) {
		if p != "" {
			c.policy = p
		}
	}
}

// NormalizeKey returns the grouping key for a product name.
func NormalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Build groups records into entries in order of first appearance.
func Build(records []ProductRecord, opts ...Option) *Catalog {
	c := &Catalog{
		index:    make(map[string]int),
		labels:   make(map[string]string),
		grouping: GroupByName,
		policy:   ResolveStrict,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, rec := range records {
		label := strings.TrimSpace(rec.Name)
		key := c.keyFor(rec)

		pos, ok := c.index[key]
		if !ok {
			pos = len(c.entries)
			c.index[key] = pos
			c.entries = append(c.entries, Entry{Key: key, Label: label, Units: []string{}})
		}
		entry := &c.entries[pos]

		for _, unit := range recordUnits(rec) {
			if !entry.HasUnit(unit) {
				entry.Units = append(entry.Units, unit)
			}
			entry.Variants = append(entry.Variants, Variant{
				ID:    rec.ID,
				Unit:  unit,
				Price: rec.Price,
				Stock: rec.Stock,
			})
		}
		if _, seen := c.labels[rec.ID]; !seen && rec.ID != "" {
			c.labels[rec.ID] = entry.Label
		}
	}
	return c
}

func (c *Catalog) keyFor(rec ProductRecord) string {
	if c.grouping == GroupByID {
		if id := strings.TrimSpace(rec.GroupID); id != "" {
			return "group:" + id
		}
	}
	return NormalizeKey(rec.Name)
}

// recordUnits lists the units a record contributes. Records without any unit
// contribute a single placeholder "".
func recordUnits(rec ProductRecord) []string {
	if len(rec.Units) > 0 {
		return rec.Units
	}
	if rec.Unit != "" {
		return []string{rec.Unit}
	}
	return []string{""}
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries returns the entries in first-appearance order.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Entry looks up an entry by key.
func (c *Catalog) Entry(key string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	pos, ok := c.index[key]
	if !ok {
		return Entry{}, false
	}
	return c.entries[pos], true
}

// Policy reports the resolve policy the catalog was built with.
func (c *Catalog) Policy() ResolvePolicy {
	if c == nil {
		return ResolveStrict
	}
	return c.policy
}
