package invoice

import (
	"strings"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
)

// Validate runs the submission checks in order and returns the first failure
// as a *ValidationError, or nil when the draft can be submitted.
func Validate(d Draft, cat *catalog.Catalog) error {
	if strings.TrimSpace(d.PartyID) == "" {
		return draftError(CodeMissingParty)
	}
	for i, line := range d.Lines {
		if err := validateLine(d.Kind, i, line, cat); err != nil {
			return err
		}
	}
	paid, ok := ParseNumber(d.Paid)
	if strings.TrimSpace(d.Paid) == "" {
		paid, ok = 0, true
	}
	if !ok || paid < 0 {
		return draftError(CodeInvalidPaid)
	}
	if paid > d.Totals().GrandTotal {
		return draftError(CodeOverPayment)
	}
	return nil
}

func validateLine(kind Kind, i int, line LineItem, cat *catalog.Catalog) *ValidationError {
	fail := func(code Code) *ValidationError {
		return &ValidationError{Code: code, Line: i, Label: line.DisplayLabel, Unit: line.Unit}
	}
	if line.ProductKey == "" {
		return fail(CodeMissingProduct)
	}
	if line.Unit == "" {
		return fail(CodeMissingUnit)
	}
	qty, ok := ParseNumber(line.Quantity)
	if !ok || qty <= 0 {
		return fail(CodeInvalidQuantity)
	}
	price, ok := ParseNumber(line.UnitPrice)
	if !ok || price < 0 {
		return fail(CodeInvalidPrice)
	}
	if _, ok := cat.ResolveID(line.ProductKey, line.Unit); !ok {
		return fail(CodeUnresolvableProduct)
	}
	if kind == KindPurchase {
		return nil
	}
	if stock := cat.StockFor(line.ProductKey, line.Unit); stock != nil && qty > *stock {
		err := fail(CodeInsufficientStock)
		err.Available = *stock
		return err
	}
	return nil
}
