package invoice

import (
	"math"
	"strconv"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
)

// Kind distinguishes sales invoices from purchase invoices.
type Kind string

const (
	KindSales    Kind = "sales"
	KindPurchase Kind = "purchase"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindSales || k == KindPurchase
}

// Draft is the in-progress invoice of one editing session.
type Draft struct {
	ID         string     `json:"id,omitempty"`
	Seq        int        `json:"seq"`
	Kind       Kind       `json:"kind"`
	PartyID    string     `json:"party_id"`
	PartyLabel string     `json:"party_label,omitempty"`
	Lines      []LineItem `json:"lines"`
	Discount   string     `json:"discount"`
	Paid       string     `json:"paid"`
	Note       string     `json:"note"`
}

// NewDraft returns a draft with a single empty row.
func NewDraft(kind Kind) Draft {
	if !kind.Valid() {
		kind = KindSales
	}
	return Draft{Kind: kind, Lines: []LineItem{NewLine()}}
}

// Reset clears the draft back to defaults, keeping its id and kind. Seq is
// bumped so the next submission gets a fresh reference.
func (d *Draft) Reset() {
	*d = Draft{ID: d.ID, Seq: d.Seq + 1, Kind: d.Kind, Lines: []LineItem{NewLine()}}
}

// Reference identifies one submission attempt of the draft; retries of the
// same contents share it.
func (d Draft) Reference() string {
	if d.ID == "" {
		return ""
	}
	return d.ID + "-" + strconv.Itoa(d.Seq)
}

// SelectParty sets the customer or supplier; nil clears it.
func (d *Draft) SelectParty(opt *catalog.PartyOption) {
	if opt == nil {
		d.PartyID, d.PartyLabel = "", ""
		return
	}
	d.PartyID, d.PartyLabel = opt.ID, opt.Name
}

// AddLine appends an empty row and returns its index.
func (d *Draft) AddLine() int {
	d.Lines = append(d.Lines, NewLine())
	return len(d.Lines) - 1
}

// RemoveLine drops row i. Removing the last remaining row, or an index out of
// range, is a no-op; the result reports whether a row was removed.
func (d *Draft) RemoveLine(i int) bool {
	if len(d.Lines) <= 1 || i < 0 || i >= len(d.Lines) {
		return false
	}
	d.Lines = append(d.Lines[:i:i], d.Lines[i+1:]...)
	return true
}

// UpdateLine replaces row i with fn(row). It reports false when i is out of
// range.
func (d *Draft) UpdateLine(i int, fn func(LineItem) LineItem) bool {
	if i < 0 || i >= len(d.Lines) {
		return false
	}
	d.Lines[i] = fn(d.Lines[i])
	return true
}

// DiscountValue is the parsed discount; blank, malformed and negative input
// count as no discount.
func (d Draft) DiscountValue() float64 {
	return math.Max(0, parseOrZero(d.Discount))
}

// PaidValue is the parsed paid amount; blank and malformed input count as 0.
func (d Draft) PaidValue() float64 {
	return parseOrZero(d.Paid)
}

// Totals recomputes the money summary from scratch.
func (d Draft) Totals() Totals {
	return ComputeTotals(d.Lines, d.DiscountValue(), d.PaidValue())
}

// Clone returns a deep copy safe to mutate independently.
func (d Draft) Clone() Draft {
	out := d
	out.Lines = make([]LineItem, len(d.Lines))
	for i, l := range d.Lines {
		l.AvailableUnits = append([]string{}, l.AvailableUnits...)
		out.Lines[i] = l
	}
	return out
}
