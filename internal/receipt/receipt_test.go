package receipt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
)

func ptr(v float64) *float64 { return &v }

func storedFixture() invoice.StoredInvoice {
	return invoice.StoredInvoice{
		ID:        "inv1",
		InvoiceNo: "S-20250301-000001",
		Kind:      invoice.KindSales,
		Date:      time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC),
		Items: []invoice.StoredItem{
			{ProductID: "p2", Unit: "bag", Quantity: 2, Price: 2800.005},
			{ProductID: "p9", ProductName: "Legacy Oil", Unit: "ltr", Quantity: 1.5, Price: 180},
			{ProductID: "p7", Unit: "", Quantity: 1, Price: 10, CategoryName: "Misc"},
		},
		SubTotal:   5880.01,
		Discount:   80,
		GrandTotal: 5800.01,
		Paid:       1234.5,
		Due:        4565.51,
	}
}

func TestEnrichResolvesLabels(t *testing.T) {
	cat := catalog.Build([]catalog.ProductRecord{
		{ID: "p1", Name: "Rice", Unit: "kg", Price: ptr(60)},
		{ID: "p2", Name: "rice", Unit: "bag", Price: ptr(2800)},
	})
	submitted := []invoice.SubmissionLine{
		{ProductID: "p2", CategoryLabel: "Grocery"},
		{ProductID: "p7", CategoryLabel: "Ignored"},
	}

	out := Enrich(storedFixture(), cat, submitted)

	assert.Equal(t, "Rice", out.Items[0].ProductName)
	assert.Equal(t, "Grocery", out.Items[0].CategoryName)
	assert.Equal(t, "Legacy Oil", out.Items[1].ProductName)
	assert.Empty(t, out.Items[1].CategoryName)
	assert.Equal(t, "p7", out.Items[2].ProductName)
	assert.Equal(t, "Misc", out.Items[2].CategoryName)
	assert.Empty(t, storedFixture().Items[0].ProductName, "input untouched")
}

func TestBuildRoundsToTwoDecimals(t *testing.T) {
	f, err := NewFormatter("BDT")
	require.NoError(t, err)

	rc := Build(storedFixture(), Company{Name: "Odyssey Trading"}, f)

	assert.Equal(t, "Sales Invoice", rc.Title)
	assert.Equal(t, "5880.01", rc.SubTotal)
	assert.Equal(t, "80.00", rc.Discount)
	assert.Equal(t, "1234.50", rc.Paid)
	assert.Equal(t, "4565.51", rc.Due)
	require.Len(t, rc.Rows, 3)
	assert.Equal(t, "2", rc.Rows[0].Quantity)
	assert.Equal(t, "2800.01", rc.Rows[0].Rate)
	assert.Equal(t, "5600.01", rc.Rows[0].Amount)
	assert.Equal(t, "1.5", rc.Rows[1].Quantity)
	assert.Equal(t, "270.00", rc.Rows[1].Amount)
	assert.NotEmpty(t, rc.DueDisplay)
	assert.Equal(t, "BDT", f.Code())
}

func TestNewFormatterRejectsUnknownCurrency(t *testing.T) {
	_, err := NewFormatter("XYZW")
	assert.Error(t, err)
}

type fakePDF struct{ html string }

func (f *fakePDF) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	f.html = html
	return []byte("%PDF-1.4"), nil
}

func TestRendererEscapesAndConverts(t *testing.T) {
	f, err := NewFormatter("BDT")
	require.NoError(t, err)
	stored := storedFixture()
	stored.Items[1].ProductName = "<script>x</script>"
	rc := Build(stored, Company{Name: "Odyssey Trading"}, f)

	pdf := &fakePDF{}
	r, err := NewRenderer(pdf)
	require.NoError(t, err)

	out, err := r.PDF(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(out))
	assert.Contains(t, pdf.html, "Invoice #S-20250301-000001")
	assert.Contains(t, pdf.html, "01 Mar 2025 10:30")
	assert.Contains(t, pdf.html, "4565.51")
	assert.False(t, strings.Contains(pdf.html, "<script>x</script>"))

	htmlOnly, err := NewRenderer(nil)
	require.NoError(t, err)
	_, err = htmlOnly.PDF(context.Background(), rc)
	assert.Error(t, err)
}
