package invoice

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
)

// Submission is the payload handed to the submission sink.
type Submission struct {
	Kind      Kind             `json:"kind"`
	Reference string           `json:"reference,omitempty"`
	PartyID   string           `json:"party_id"`
	Lines     []SubmissionLine `json:"lines"`
	Discount  float64          `json:"discount"`
	Paid      float64          `json:"paid"`
	Note      string           `json:"note"`
}

// SubmissionLine is a line resolved to a concrete product id.
type SubmissionLine struct {
	ProductID     string  `json:"product_id"`
	CategoryID    *string `json:"category_id"`
	CategoryLabel string  `json:"category_label"`
	Unit          string  `json:"unit"`
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price"`
}

// StoredInvoice is the record returned by the sink after persisting.
type StoredInvoice struct {
	ID         string       `json:"id"`
	InvoiceNo  string       `json:"invoice_no"`
	Date       time.Time    `json:"date"`
	Kind       Kind         `json:"kind"`
	PartyID    string       `json:"party_id"`
	Items      []StoredItem `json:"items"`
	SubTotal   float64      `json:"sub_total"`
	Discount   float64      `json:"discount"`
	GrandTotal float64      `json:"grand_total"`
	Paid       float64      `json:"paid"`
	Due        float64      `json:"due"`
	Note       string       `json:"note,omitempty"`
}

// StoredItem is one persisted line.
type StoredItem struct {
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name,omitempty"`
	CategoryID   string  `json:"category_id,omitempty"`
	CategoryName string  `json:"category_name,omitempty"`
	Unit         string  `json:"unit"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price"`
}

// ProductSource supplies the product records the catalog is built from.
type ProductSource interface {
	Products(ctx context.Context) ([]catalog.ProductRecord, error)
}

// PartySource supplies customers (sales) or suppliers (purchases).
type PartySource interface {
	Parties(ctx context.Context, kind Kind) ([]catalog.PartyOption, error)
}

// CategorySource supplies the reporting categories attachable to lines.
type CategorySource interface {
	Categories(ctx context.Context) ([]catalog.CategoryOption, error)
}

// Sink persists a submission and returns the stored record.
type Sink interface {
	Submit(ctx context.Context, sub Submission) (StoredInvoice, error)
}

// Sources groups the three collaborators loaded when a session starts.
type Sources struct {
	Products   ProductSource
	Parties    PartySource
	Categories CategorySource
}

// BuildSubmission validates the draft and resolves every line to a product
// id. Validation failures are returned as *ValidationError.
func BuildSubmission(d Draft, cat *catalog.Catalog) (Submission, error) {
	if err := Validate(d, cat); err != nil {
		return Submission{}, err
	}
	lines := make([]SubmissionLine, 0, len(d.Lines))
	for i, line := range d.Lines {
		productID, ok := cat.ResolveID(line.ProductKey, line.Unit)
		if !ok {
			return Submission{}, &ValidationError{Code: CodeUnresolvableProduct, Line: i, Label: line.DisplayLabel, Unit: line.Unit}
		}
		var categoryID *string
		if line.CategoryID != "" {
			id := line.CategoryID
			categoryID = &id
		}
		qty, _ := ParseNumber(line.Quantity)
		price, _ := ParseNumber(line.UnitPrice)
		lines = append(lines, SubmissionLine{
			ProductID:     productID,
			CategoryID:    categoryID,
			CategoryLabel: line.CategoryLabel,
			Unit:          line.Unit,
			Quantity:      qty,
			Price:         price,
		})
	}
	return Submission{
		Kind:      d.Kind,
		Reference: d.Reference(),
		PartyID:   d.PartyID,
		Lines:     lines,
		Discount:  d.DiscountValue(),
		Paid:      d.PaidValue(),
		Note:      d.Note,
	}, nil
}
