package backend

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
)

// productDTO mirrors a product document. Price and stock arrive either as
// JSON numbers or numeric strings, and may be null.
type productDTO struct {
	ID      string              `json:"_id"`
	Name    string              `json:"name"`
	Unit    string              `json:"unit"`
	Units   []string            `json:"units"`
	Price   decimal.NullDecimal `json:"price"`
	Stock   decimal.NullDecimal `json:"stock"`
	GroupID string              `json:"groupId"`
}

func (p productDTO) record() catalog.ProductRecord {
	return catalog.ProductRecord{
		ID:      p.ID,
		Name:    p.Name,
		Unit:    p.Unit,
		Units:   p.Units,
		Price:   nullFloat(p.Price),
		Stock:   nullFloat(p.Stock),
		GroupID: p.GroupID,
	}
}

type namedDTO struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type itemPayload struct {
	Product      string  `json:"product"`
	Category     *string `json:"category"`
	CategoryName string  `json:"categoryName"`
	Unit         string  `json:"unit"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price"`
}

// invoicePayload is the create body. Exactly one of Customer or Supplier is
// set depending on the invoice kind.
type invoicePayload struct {
	Customer string        `json:"customer,omitempty"`
	Supplier string        `json:"supplier,omitempty"`
	Items    []itemPayload `json:"items"`
	Discount float64       `json:"discount"`
	Paid     float64       `json:"paid"`
	Note     string        `json:"note"`
}

func newInvoicePayload(sub invoice.Submission) invoicePayload {
	p := invoicePayload{
		Items:    make([]itemPayload, 0, len(sub.Lines)),
		Discount: sub.Discount,
		Paid:     sub.Paid,
		Note:     sub.Note,
	}
	if sub.Kind == invoice.KindPurchase {
		p.Supplier = sub.PartyID
	} else {
		p.Customer = sub.PartyID
	}
	for _, l := range sub.Lines {
		p.Items = append(p.Items, itemPayload{
			Product:      l.ProductID,
			Category:     l.CategoryID,
			CategoryName: l.CategoryLabel,
			Unit:         l.Unit,
			Quantity:     l.Quantity,
			Price:        l.Price,
		})
	}
	return p
}

// ref decodes a reference that is either a bare id or a populated document.
type ref struct {
	ID   string
	Name string
}

func (r *ref) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*r = ref{}
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var doc namedDTO
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		*r = ref{ID: doc.ID, Name: doc.Name}
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*r = ref{ID: id}
	return nil
}

type storedItemDTO struct {
	Product      ref                 `json:"product"`
	Category     ref                 `json:"category"`
	CategoryName string              `json:"categoryName"`
	Unit         string              `json:"unit"`
	Quantity     decimal.NullDecimal `json:"quantity"`
	Price        decimal.NullDecimal `json:"price"`
}

type storedInvoiceDTO struct {
	ID         string              `json:"_id"`
	InvoiceNo  string              `json:"invoiceNo"`
	Date       *time.Time          `json:"date"`
	CreatedAt  *time.Time          `json:"createdAt"`
	Customer   ref                 `json:"customer"`
	Supplier   ref                 `json:"supplier"`
	Items      []storedItemDTO     `json:"items"`
	SubTotal   decimal.NullDecimal `json:"subTotal"`
	Discount   decimal.NullDecimal `json:"discount"`
	GrandTotal decimal.NullDecimal `json:"grandTotal"`
	Paid       decimal.NullDecimal `json:"paid"`
	Due        decimal.NullDecimal `json:"due"`
	Note       string              `json:"note"`
}

func (d storedInvoiceDTO) stored(kind invoice.Kind) invoice.StoredInvoice {
	out := invoice.StoredInvoice{
		ID:         d.ID,
		InvoiceNo:  d.InvoiceNo,
		Kind:       kind,
		PartyID:    d.Customer.ID,
		SubTotal:   floatOrZero(d.SubTotal),
		Discount:   floatOrZero(d.Discount),
		GrandTotal: floatOrZero(d.GrandTotal),
		Paid:       floatOrZero(d.Paid),
		Due:        floatOrZero(d.Due),
		Note:       d.Note,
	}
	if kind == invoice.KindPurchase {
		out.PartyID = d.Supplier.ID
	}
	switch {
	case d.Date != nil:
		out.Date = *d.Date
	case d.CreatedAt != nil:
		out.Date = *d.CreatedAt
	}
	for _, it := range d.Items {
		out.Items = append(out.Items, invoice.StoredItem{
			ProductID:    it.Product.ID,
			ProductName:  it.Product.Name,
			CategoryID:   it.Category.ID,
			CategoryName: firstNonEmpty(it.CategoryName, it.Category.Name),
			Unit:         it.Unit,
			Quantity:     floatOrZero(it.Quantity),
			Price:        floatOrZero(it.Price),
		})
	}
	return out
}

func nullFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

func floatOrZero(d decimal.NullDecimal) float64 {
	if !d.Valid {
		return 0
	}
	return d.Decimal.InexactFloat64()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
