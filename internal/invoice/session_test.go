package invoice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
)

type stubSources struct {
	products   []catalog.ProductRecord
	parties    map[Kind][]catalog.PartyOption
	categories []catalog.CategoryOption
	productErr error
}

func (s *stubSources) Products(ctx context.Context) ([]catalog.ProductRecord, error) {
	return s.products, s.productErr
}

func (s *stubSources) Parties(ctx context.Context, kind Kind) ([]catalog.PartyOption, error) {
	return s.parties[kind], nil
}

func (s *stubSources) Categories(ctx context.Context) ([]catalog.CategoryOption, error) {
	return s.categories, nil
}

func (s *stubSources) sources() Sources {
	return Sources{Products: s, Parties: s, Categories: s}
}

type stubSink struct {
	release chan struct{}
	entered chan struct{}
	err     error
	got     []Submission
}

func (s *stubSink) Submit(ctx context.Context, sub Submission) (StoredInvoice, error) {
	if s.entered != nil {
		close(s.entered)
	}
	if s.release != nil {
		<-s.release
	}
	s.got = append(s.got, sub)
	if s.err != nil {
		return StoredInvoice{}, s.err
	}
	return StoredInvoice{ID: "inv-1", InvoiceNo: "S-0001", PartyID: sub.PartyID}, nil
}

func newStubSources() *stubSources {
	return &stubSources{
		products: []catalog.ProductRecord{
			{ID: "p1", Name: "Rice", Unit: "kg", Price: ptr(60), Stock: ptr(100)},
			{ID: "p2", Name: "Rice", Unit: "bag", Price: ptr(2800), Stock: ptr(10)},
		},
		parties: map[Kind][]catalog.PartyOption{
			KindSales:    {{ID: "c1", Name: "Karim Traders"}},
			KindPurchase: {{ID: "s1", Name: "Delta Mills"}},
		},
		categories: []catalog.CategoryOption{{ID: "g1", Name: "Grocery"}},
	}
}

func loadedSession(t *testing.T, kind Kind) *Session {
	t.Helper()
	s := NewSession(kind, nil)
	require.NoError(t, s.Load(context.Background(), newStubSources().sources()))
	return s
}

func fillValid(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.SelectParty("c1"))
	require.NoError(t, s.SelectProduct(0, "rice"))
	require.NoError(t, s.SetQuantity(0, "5"))
	require.NoError(t, s.SelectCategory(0, "g1"))
	require.NoError(t, s.SetPayment("50", "200", "walk-in"))
}

func TestSessionLoad(t *testing.T) {
	s := loadedSession(t, KindPurchase)

	assert.Equal(t, 1, s.Catalog().Len())
	assert.Equal(t, []catalog.PartyOption{{ID: "s1", Name: "Delta Mills"}}, s.Parties())
	assert.Len(t, s.Categories(), 1)
	assert.NotEmpty(t, s.Draft().ID)
}

func TestSessionLoadFailureKeepsPreviousData(t *testing.T) {
	s := loadedSession(t, KindSales)
	src := newStubSources()
	src.productErr = errors.New("boom")

	err := s.Load(context.Background(), src.sources())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load products")
	assert.Equal(t, 1, s.Catalog().Len())
}

func TestSessionEditsAndTotals(t *testing.T) {
	s := loadedSession(t, KindSales)
	fillValid(t, s)

	assert.Equal(t, Totals{Subtotal: 300, GrandTotal: 250, Due: 50}, s.Totals())

	require.NoError(t, s.SelectUnit(0, "bag"))
	assert.Equal(t, "2800", s.Draft().Lines[0].UnitPrice)
	require.NoError(t, s.SetPrice(0, "2700"))
	assert.True(t, s.Draft().Lines[0].PriceOverridden)

	assert.ErrorIs(t, s.SelectProduct(0, "beans"), ErrUnknownOption)
	assert.ErrorIs(t, s.SelectParty("nobody"), ErrUnknownOption)
	assert.ErrorIs(t, s.SelectCategory(0, "nope"), ErrUnknownOption)
	assert.ErrorIs(t, s.SetQuantity(3, "1"), ErrLineOutOfRange)

	removed, err := s.RemoveLine(0)
	require.NoError(t, err)
	assert.False(t, removed)
	idx, err := s.AddLine()
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	removed, err = s.RemoveLine(1)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestSessionSelectUnitRejectsUnofferedUnit(t *testing.T) {
	s := NewSession(KindSales, nil, catalog.WithResolvePolicy(catalog.ResolveFirstVariant))
	require.NoError(t, s.Load(context.Background(), newStubSources().sources()))
	require.NoError(t, s.SelectProduct(0, "rice"))

	err := s.SelectUnit(0, "ton")
	assert.ErrorIs(t, err, ErrUnknownOption)
	line := s.Draft().Lines[0]
	assert.Equal(t, "kg", line.Unit)
	assert.Equal(t, "60", line.UnitPrice)

	assert.ErrorIs(t, s.SelectUnit(4, "kg"), ErrLineOutOfRange)
	require.NoError(t, s.SelectUnit(0, "bag"))

	// rows without a product accept any unit until a product is picked
	s.AddLine()
	assert.NoError(t, s.SelectUnit(1, "ton"))
}

func TestSessionSubmitResetsDraft(t *testing.T) {
	s := loadedSession(t, KindSales)
	fillValid(t, s)
	ref := s.Draft().Reference()
	sink := &stubSink{}

	stored, err := s.Submit(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, "S-0001", stored.InvoiceNo)
	require.Len(t, sink.got, 1)
	assert.Equal(t, ref, sink.got[0].Reference)
	assert.Equal(t, "p1", sink.got[0].Lines[0].ProductID)

	d := s.Draft()
	assert.Empty(t, d.PartyID)
	assert.Len(t, d.Lines, 1)
	assert.NotEqual(t, ref, d.Reference())
}

func TestSessionSubmitValidationBlocks(t *testing.T) {
	s := loadedSession(t, KindSales)
	fillValid(t, s)
	require.NoError(t, s.SetPayment("50", "300", ""))
	sink := &stubSink{}

	_, err := s.Submit(context.Background(), sink)
	assert.ErrorIs(t, err, ErrOverPayment)
	assert.Empty(t, sink.got)
	assert.Equal(t, "c1", s.Draft().PartyID)
}

func TestSessionTransportErrorPreservesDraft(t *testing.T) {
	s := loadedSession(t, KindSales)
	fillValid(t, s)
	ref := s.Draft().Reference()
	sink := &stubSink{err: errors.New("connection refused")}

	_, err := s.Submit(context.Background(), sink)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, err.Error(), "connection refused")

	d := s.Draft()
	assert.Equal(t, "c1", d.PartyID)
	assert.Equal(t, "5", d.Lines[0].Quantity)
	assert.Equal(t, ref, d.Reference(), "retry reuses the reference")
	assert.False(t, s.Busy())
}

func TestSessionRejectsConcurrentSubmit(t *testing.T) {
	s := loadedSession(t, KindSales)
	fillValid(t, s)
	sink := &stubSink{release: make(chan struct{}), entered: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), sink)
		done <- err
	}()

	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first submit never reached the sink")
	}
	assert.True(t, s.Busy())

	_, err := s.Submit(context.Background(), &stubSink{})
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(sink.release)
	require.NoError(t, <-done)
	assert.False(t, s.Busy())
	assert.Len(t, sink.got, 1)
}

func TestSessionEditsBlockedWhileSubmitting(t *testing.T) {
	s := loadedSession(t, KindSales)
	fillValid(t, s)
	sink := &stubSink{release: make(chan struct{}), entered: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), sink)
		done <- err
	}()
	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("submit never reached the sink")
	}

	assert.ErrorIs(t, s.SetQuantity(0, "9"), ErrSubmitInFlight)
	assert.ErrorIs(t, s.SetPayment("0", "0", "late"), ErrSubmitInFlight)
	_, err := s.AddLine()
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(sink.release)
	require.NoError(t, <-done)
	assert.Equal(t, 5.0, sink.got[0].Lines[0].Quantity)
	assert.Len(t, s.Draft().Lines, 1)

	require.NoError(t, s.SetQuantity(0, "9"), "edits resume after the submit finishes")
}

func TestSessionRestore(t *testing.T) {
	s := loadedSession(t, KindSales)
	saved := NewDraft(KindPurchase)
	saved.ID = "saved"
	saved.Seq = 2
	saved.Lines = nil

	s.Restore(saved)
	d := s.Draft()
	assert.Equal(t, "saved-2", d.Reference())
	assert.Equal(t, KindPurchase, d.Kind)
	assert.Len(t, d.Lines, 1)
}
