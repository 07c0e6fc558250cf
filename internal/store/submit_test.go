package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if r.values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

type fakeRows struct {
	pgx.Rows
	data   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return fakeRow{values: r.data[r.pos-1]}.Scan(dest...)
}

func (r *fakeRows) Err() error { return r.err }
func (r *fakeRows) Close()     { r.closed = true }

// fakeQueryer serves invoice headers keyed by the lookup argument and items
// keyed by invoice id.
type fakeQueryer struct {
	headers map[string][]any
	items   map[string][][]any

	rowSQL  string
	rowArgs []any
	queries int
}

func (q *fakeQueryer) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.rowSQL, q.rowArgs = sql, args
	q.queries++
	header, ok := q.headers[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{values: header}
}

func (q *fakeQueryer) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	q.queries++
	return &fakeRows{data: q.items[args[0].(string)]}, nil
}

var storedAt = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func storedHeader(id, invoiceNo string) []any {
	return []any{id, invoiceNo, storedAt, "sales", "c1", 300.0, 50.0, 250.0, 200.0, 50.0, "first attempt"}
}

func newFakeQueryer() *fakeQueryer {
	header := storedHeader("inv-1", "S-20250301-000007")
	return &fakeQueryer{
		headers: map[string][]any{
			"draft-1-0": header,
			"inv-1":     header,
		},
		items: map[string][][]any{
			"inv-1": {
				{"p-rice-kg", "Rice", "cat-1", "Grains", "kg", 5.0, 60.0},
				{"p-salt", "Salt", "", "", "pcs", 2.0, 0.0},
			},
		},
	}
}

func TestFinishSubmitReplayLoadsByReference(t *testing.T) {
	q := newFakeQueryer()

	txErr := fmt.Errorf("insert: %w", errReplay)
	got, err := finishSubmit(context.Background(), q, txErr, "draft-1-0", "fresh-id")
	require.NoError(t, err)

	assert.Contains(t, q.rowSQL, "i.reference = $1")
	assert.Equal(t, []any{"draft-1-0"}, q.rowArgs)
	assert.Equal(t, "inv-1", got.ID)
	assert.Equal(t, "S-20250301-000007", got.InvoiceNo)
	assert.Equal(t, invoice.KindSales, got.Kind)
	assert.Equal(t, storedAt, got.Date)
	assert.Equal(t, 250.0, got.GrandTotal)
	assert.Equal(t, "first attempt", got.Note)
	require.Len(t, got.Items, 2)
	assert.Equal(t, invoice.StoredItem{
		ProductID: "p-rice-kg", ProductName: "Rice", CategoryID: "cat-1", CategoryName: "Grains",
		Unit: "kg", Quantity: 5, Price: 60,
	}, got.Items[0])
	assert.Equal(t, "pcs", got.Items[1].Unit)
}

func TestFinishSubmitLoadsNewInvoiceByID(t *testing.T) {
	q := newFakeQueryer()

	got, err := finishSubmit(context.Background(), q, nil, "draft-1-0", "inv-1")
	require.NoError(t, err)
	assert.Contains(t, q.rowSQL, "i.id = $1")
	assert.Equal(t, []any{"inv-1"}, q.rowArgs)
	assert.Equal(t, "inv-1", got.ID)
	assert.Len(t, got.Items, 2)
}

func TestFinishSubmitReturnsTransactionError(t *testing.T) {
	q := newFakeQueryer()
	txErr := errors.New("store: insert invoice: connection reset")

	_, err := finishSubmit(context.Background(), q, txErr, "draft-1-0", "inv-1")
	assert.ErrorIs(t, err, txErr)
	assert.Zero(t, q.queries)
}

func TestFinishSubmitReplayWithoutStoredInvoice(t *testing.T) {
	q := newFakeQueryer()

	_, err := finishSubmit(context.Background(), q, errReplay, "draft-9-3", "fresh-id")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []any{"draft-9-3"}, q.rowArgs)
}

func TestLoadInvoiceWrapsScanErrors(t *testing.T) {
	q := newFakeQueryer()
	q.headers["broken"] = []any{"only-id"}

	_, err := loadInvoice(context.Background(), q, `i.id = $1`, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "store: load invoice")
}

func TestScanProducts(t *testing.T) {
	price := 60.0
	rows := &fakeRows{data: [][]any{
		{"p-rice-kg", "Rice", "kg", []string{"kg", "bag"}, &price, nil, "g-rice"},
		{"p-salt", "Salt", "pcs", []string(nil), nil, nil, ""},
	}}

	got, err := scanProducts(rows)
	require.NoError(t, err)
	assert.True(t, rows.closed)
	require.Len(t, got, 2)
	assert.Equal(t, catalog.ProductRecord{
		ID: "p-rice-kg", Name: "Rice", Unit: "kg", Units: []string{"kg", "bag"}, Price: &price, GroupID: "g-rice",
	}, got[0])
	assert.Nil(t, got[1].Price)
	assert.Nil(t, got[1].Stock)
}

func TestScanProductsFailures(t *testing.T) {
	rows := &fakeRows{data: [][]any{{"p-rice-kg", "Rice"}}}
	_, err := scanProducts(rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store: scan product")
	assert.True(t, rows.closed)

	iterErr := errors.New("conn closed")
	_, err = scanProducts(&fakeRows{err: iterErr})
	assert.ErrorIs(t, err, iterErr)
}
