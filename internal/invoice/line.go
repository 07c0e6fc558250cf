package invoice

import (
	"math"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
)

// LineItem is one invoice row. Quantity and UnitPrice hold the user's input
// verbatim and are parsed on demand.
type LineItem struct {
	ProductKey      string   `json:"product_key"`
	DisplayLabel    string   `json:"display_label"`
	Unit            string   `json:"unit"`
	AvailableUnits  []string `json:"available_units"`
	Quantity        string   `json:"quantity"`
	UnitPrice       string   `json:"unit_price"`
	PriceOverridden bool     `json:"price_overridden"`
	CategoryID      string   `json:"category_id,omitempty"`
	CategoryLabel   string   `json:"category_label,omitempty"`
}

// NewLine returns the empty row template.
func NewLine() LineItem {
	return LineItem{AvailableUnits: []string{}}
}

// SelectProduct points the line at a catalog entry, resets the unit to the
// entry's default and reloads the price, discarding any manual override.
func SelectProduct(line LineItem, cat *catalog.Catalog, opt catalog.ProductOption) LineItem {
	line.ProductKey = opt.Key
	line.DisplayLabel = opt.Name
	line.PriceOverridden = false

	entry, ok := cat.Entry(opt.Key)
	if !ok {
		line.Unit = ""
		line.AvailableUnits = []string{}
		line.UnitPrice = ""
		return line
	}
	line.AvailableUnits = append([]string{}, entry.Units...)
	line.Unit = entry.DefaultUnit()
	if price, ok := cat.PriceFor(opt.Key, line.Unit); ok {
		line.UnitPrice = formatNumber(price)
	} else {
		line.UnitPrice = ""
	}
	return line
}

// SelectUnit changes the unit and reloads the price for (key, unit),
// discarding any manual override. When the catalog has no price for the pair
// the price is cleared, never carried over from the previous unit.
func SelectUnit(line LineItem, cat *catalog.Catalog, unit string) LineItem {
	line.Unit = unit
	if line.ProductKey == "" {
		return line
	}
	line.PriceOverridden = false
	if price, ok := cat.PriceFor(line.ProductKey, unit); ok {
		line.UnitPrice = formatNumber(price)
	} else {
		line.UnitPrice = ""
	}
	return line
}

// SetQuantity stores the raw quantity input.
func SetQuantity(line LineItem, qty string) LineItem {
	line.Quantity = qty
	return line
}

// SetPrice stores the raw price input as a manual override.
func SetPrice(line LineItem, price string) LineItem {
	line.UnitPrice = price
	line.PriceOverridden = true
	return line
}

// SelectCategory attaches a category, or clears it when opt is nil.
func SelectCategory(line LineItem, opt *catalog.CategoryOption) LineItem {
	if opt == nil {
		line.CategoryID = ""
		line.CategoryLabel = ""
		return line
	}
	line.CategoryID = opt.ID
	line.CategoryLabel = opt.Name
	return line
}

// Amount is max(0, quantity) * max(0, price), or 0 when either input is not a
// number.
func Amount(line LineItem) float64 {
	qty, ok := ParseNumber(line.Quantity)
	if !ok {
		return 0
	}
	price, ok := ParseNumber(line.UnitPrice)
	if !ok {
		return 0
	}
	return math.Max(0, qty) * math.Max(0, price)
}

// ParseNumber parses a user-entered decimal. Blank, NaN and infinite values
// are rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseOrZero treats missing or malformed input as zero.
func parseOrZero(s string) float64 {
	v, _ := ParseNumber(s)
	return v
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
