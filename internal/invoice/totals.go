package invoice

import "math"

// Totals is the derived money summary of a draft. Values carry full float
// precision; rounding belongs to presentation.
type Totals struct {
	Subtotal   float64 `json:"subtotal"`
	GrandTotal float64 `json:"grand_total"`
	Due        float64 `json:"due"`
}

// ComputeTotals sums line amounts and applies discount and payment. Neither
// the grand total nor the due amount ever goes below zero.
func ComputeTotals(lines []LineItem, discount, paid float64) Totals {
	var subtotal float64
	for _, line := range lines {
		subtotal += Amount(line)
	}
	return applyAdjustments(subtotal, discount, paid)
}

// Totals recomputes the summary from resolved submission lines.
func (s Submission) Totals() Totals {
	var subtotal float64
	for _, line := range s.Lines {
		subtotal += math.Max(0, line.Quantity) * math.Max(0, line.Price)
	}
	return applyAdjustments(subtotal, s.Discount, s.Paid)
}

func applyAdjustments(subtotal, discount, paid float64) Totals {
	grand := math.Max(0, subtotal-discount)
	return Totals{
		Subtotal:   subtotal,
		GrandTotal: grand,
		Due:        math.Max(0, grand-paid),
	}
}
