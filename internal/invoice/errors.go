package invoice

import (
	"errors"
	"fmt"
	"strconv"
)

// Code identifies a validation failure.
type Code string

const (
	CodeMissingParty        Code = "missing_party"
	CodeMissingProduct      Code = "missing_product"
	CodeMissingUnit         Code = "missing_unit"
	CodeInvalidQuantity     Code = "invalid_quantity"
	CodeInvalidPrice        Code = "invalid_price"
	CodeUnresolvableProduct Code = "unresolvable_product"
	CodeInsufficientStock   Code = "insufficient_stock"
	CodeInvalidPaid         Code = "invalid_paid"
	CodeOverPayment         Code = "over_payment"
)

// Class groups codes by how the user recovers from them.
type Class string

const (
	// ClassInput is malformed or missing user input.
	ClassInput Class = "input"
	// ClassResolution is a line that no longer maps to a catalog variant,
	// usually a stale selection after a catalog reload.
	ClassResolution Class = "resolution"
	// ClassStock is a business-rule rejection on available stock.
	ClassStock Class = "stock"
)

var (
	ErrMissingParty        = errors.New("invoice: party not selected")
	ErrMissingProduct      = errors.New("invoice: line has no product")
	ErrMissingUnit         = errors.New("invoice: line has no unit")
	ErrInvalidQuantity     = errors.New("invoice: quantity must be greater than zero")
	ErrInvalidPrice        = errors.New("invoice: price must be zero or more")
	ErrUnresolvableProduct = errors.New("invoice: product cannot be resolved")
	ErrInsufficientStock   = errors.New("invoice: insufficient stock")
	ErrInvalidPaid         = errors.New("invoice: paid must be zero or more")
	ErrOverPayment         = errors.New("invoice: paid exceeds grand total")

	// ErrSubmitInFlight rejects a submit while another one is outstanding.
	ErrSubmitInFlight = errors.New("invoice: submission already in progress")
	// ErrCatalogNotLoaded is returned when a session has no product data yet.
	ErrCatalogNotLoaded = errors.New("invoice: catalog not loaded")
)

var codeSentinels = map[Code]error{
	CodeMissingParty:        ErrMissingParty,
	CodeMissingProduct:      ErrMissingProduct,
	CodeMissingUnit:         ErrMissingUnit,
	CodeInvalidQuantity:     ErrInvalidQuantity,
	CodeInvalidPrice:        ErrInvalidPrice,
	CodeUnresolvableProduct: ErrUnresolvableProduct,
	CodeInsufficientStock:   ErrInsufficientStock,
	CodeInvalidPaid:         ErrInvalidPaid,
	CodeOverPayment:         ErrOverPayment,
}

// Class returns the recovery class of the code.
func (c Code) Class() Class {
	switch c {
	case CodeUnresolvableProduct:
		return ClassResolution
	case CodeInsufficientStock:
		return ClassStock
	default:
		return ClassInput
	}
}

// ValidationError is the first failed check of a draft. Line is the zero-based
// row index, or -1 for draft-level checks.
type ValidationError struct {
	Code      Code
	Line      int
	Label     string
	Unit      string
	Available float64
}

func (e *ValidationError) Error() string {
	sentinel := codeSentinels[e.Code]
	msg := string(e.Code)
	if sentinel != nil {
		msg = sentinel.Error()
	}
	if e.Line < 0 {
		return msg
	}
	switch e.Code {
	case CodeInsufficientStock:
		return fmt.Sprintf("%s: line %d %s (%s), available %s", msg, e.Line+1, e.Label, e.Unit, strconv.FormatFloat(e.Available, 'f', -1, 64))
	case CodeUnresolvableProduct:
		return fmt.Sprintf("%s: line %d %q (%s)", msg, e.Line+1, e.Label, e.Unit)
	default:
		return fmt.Sprintf("%s: line %d", msg, e.Line+1)
	}
}

// Unwrap exposes the code's sentinel so errors.Is works.
func (e *ValidationError) Unwrap() error {
	return codeSentinels[e.Code]
}

// Class returns the recovery class of the failure.
func (e *ValidationError) Class() Class {
	return e.Code.Class()
}

func draftError(code Code) *ValidationError {
	return &ValidationError{Code: code, Line: -1}
}

// TransportError wraps a submission sink failure. The draft is kept intact so
// the user can retry.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "invoice: submission failed"
	}
	return "invoice: submission failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
