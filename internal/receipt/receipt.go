package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
)

// Company identifies the issuer printed in the header.
type Company struct {
	Name    string `json:"name"`
	LogoURL string `json:"logo_url,omitempty"`
}

// Row is one printed line. Money columns are pre-formatted to two decimals.
type Row struct {
	Product  string `json:"product"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
	Rate     string `json:"rate"`
	Amount   string `json:"amount"`
}

// Receipt is the print model of a stored invoice.
type Receipt struct {
	Company    Company   `json:"company"`
	Title      string    `json:"title"`
	InvoiceID  string    `json:"invoice_id"`
	InvoiceNo  string    `json:"invoice_no"`
	Kind       string    `json:"kind"`
	Date       time.Time `json:"date"`
	Rows       []Row     `json:"rows"`
	SubTotal   string    `json:"sub_total"`
	Discount   string    `json:"discount"`
	GrandTotal string    `json:"grand_total"`
	Paid       string    `json:"paid"`
	Due        string    `json:"due"`
	DueDisplay string    `json:"due_display"`
	Note       string    `json:"note,omitempty"`
}

// Formatter renders amounts in one currency.
type Formatter struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewFormatter validates the ISO 4217 code.
func NewFormatter(code string) (Formatter, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return Formatter{}, fmt.Errorf("receipt: currency %q: %w", code, err)
	}
	return Formatter{unit: unit, printer: message.NewPrinter(language.English)}, nil
}

// Display formats v with the currency symbol and digit grouping.
func (f Formatter) Display(v float64) string {
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(round2(v).InexactFloat64())))
}

// Code returns the ISO code.
func (f Formatter) Code() string {
	return f.unit.String()
}

// Build produces the print model. Totals are taken from the stored record;
// row amounts are quantity times rate rounded half away from zero.
func Build(stored invoice.StoredInvoice, company Company, f Formatter) Receipt {
	title := "Sales Invoice"
	if stored.Kind == invoice.KindPurchase {
		title = "Purchase Invoice"
	}
	r := Receipt{
		Company:    company,
		Title:      title,
		InvoiceID:  stored.ID,
		InvoiceNo:  stored.InvoiceNo,
		Kind:       string(stored.Kind),
		Date:       stored.Date,
		SubTotal:   fixed(stored.SubTotal),
		Discount:   fixed(stored.Discount),
		GrandTotal: fixed(stored.GrandTotal),
		Paid:       fixed(stored.Paid),
		Due:        fixed(stored.Due),
		DueDisplay: f.Display(stored.Due),
		Note:       stored.Note,
	}
	for _, it := range stored.Items {
		qty := decimal.NewFromFloat(it.Quantity)
		rate := decimal.NewFromFloat(it.Price)
		r.Rows = append(r.Rows, Row{
			Product:  it.ProductName,
			Category: it.CategoryName,
			Unit:     it.Unit,
			Quantity: qty.String(),
			Rate:     rate.StringFixed(2),
			Amount:   qty.Mul(rate).StringFixed(2),
		})
	}
	return r
}

func round2(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
