package api

import (
	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
)

type createDraftRequest struct {
	Kind string `json:"kind" validate:"required,oneof=sales purchase"`
}

type partyRequest struct {
	PartyID string `json:"party_id" validate:"max=128"`
}

// lineRequest applies only the fields present, in the order product, unit,
// quantity, price, category.
type lineRequest struct {
	ProductKey *string `json:"product_key" validate:"omitempty,max=256"`
	Unit       *string `json:"unit" validate:"omitempty,max=64"`
	Quantity   *string `json:"quantity" validate:"omitempty,max=32"`
	Price      *string `json:"price" validate:"omitempty,max=32"`
	CategoryID *string `json:"category_id" validate:"omitempty,max=128"`
}

type paymentRequest struct {
	Discount string `json:"discount" validate:"max=32"`
	Paid     string `json:"paid" validate:"max=32"`
	Note     string `json:"note" validate:"max=1000"`
}

type lineView struct {
	invoice.LineItem
	Amount float64  `json:"amount"`
	Stock  *float64 `json:"stock,omitempty"`
}

type draftView struct {
	ID         string         `json:"id"`
	Reference  string         `json:"reference"`
	Kind       invoice.Kind   `json:"kind"`
	PartyID    string         `json:"party_id"`
	PartyLabel string         `json:"party_label,omitempty"`
	Lines      []lineView     `json:"lines"`
	Discount   string         `json:"discount"`
	Paid       string         `json:"paid"`
	Note       string         `json:"note"`
	Totals     invoice.Totals `json:"totals"`
	Busy       bool           `json:"busy"`
}

func newDraftView(sess *invoice.Session) draftView {
	d := sess.Draft()
	cat := sess.Catalog()
	v := draftView{
		ID:         d.ID,
		Reference:  d.Reference(),
		Kind:       d.Kind,
		PartyID:    d.PartyID,
		PartyLabel: d.PartyLabel,
		Lines:      make([]lineView, 0, len(d.Lines)),
		Discount:   d.Discount,
		Paid:       d.Paid,
		Note:       d.Note,
		Totals:     d.Totals(),
		Busy:       sess.Busy(),
	}
	for _, l := range d.Lines {
		v.Lines = append(v.Lines, lineView{LineItem: l, Amount: invoice.Amount(l), Stock: cat.StockFor(l.ProductKey, l.Unit)})
	}
	return v
}

type unitView struct {
	catalog.UnitOption
	Price *float64 `json:"price,omitempty"`
	Stock *float64 `json:"stock,omitempty"`
}

type optionsView struct {
	Parties    []catalog.PartyOption    `json:"parties"`
	Products   []catalog.ProductOption  `json:"products"`
	Categories []catalog.CategoryOption `json:"categories"`
}
