package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
)

var (
	// ErrLineOutOfRange is returned for edits addressing a missing row.
	ErrLineOutOfRange = errors.New("invoice: line index out of range")
	// ErrUnknownOption is returned when a selection is not in the loaded lists.
	ErrUnknownOption = errors.New("invoice: unknown option")
)

// Session owns one draft together with the reference data it is edited
// against. Submissions are serialised by a busy flag: a second Submit while
// one is outstanding fails with ErrSubmitInFlight instead of queueing, and so
// does every edit, so the draft reset after a stored submission never drops
// input made while the sink was running.
type Session struct {
	logger      *slog.Logger
	catalogOpts []catalog.Option

	mu         sync.Mutex
	draft      Draft
	catalog    *catalog.Catalog
	parties    []catalog.PartyOption
	categories []catalog.CategoryOption

	busy atomic.Bool
}

// NewSession starts an editing session for kind.
func NewSession(kind Kind, logger *slog.Logger, opts ...catalog.Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	d := NewDraft(kind)
	d.ID = uuid.NewString()
	return &Session{logger: logger, catalogOpts: opts, draft: d, catalog: catalog.Build(nil, opts...)}
}

// Load fetches parties, products and categories in parallel and swaps them in
// once all three succeed. The catalog is rebuilt from scratch.
func (s *Session) Load(ctx context.Context, src Sources) error {
	if src.Products == nil || src.Parties == nil || src.Categories == nil {
		return errors.New("invoice: sources not configured")
	}
	kind := s.Draft().Kind

	var (
		records    []catalog.ProductRecord
		parties    []catalog.PartyOption
		categories []catalog.CategoryOption
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		parties, err = src.Parties.Parties(gctx, kind)
		if err != nil {
			return fmt.Errorf("load parties: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		records, err = src.Products.Products(gctx)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		categories, err = src.Categories.Categories(gctx)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	cat := catalog.Build(records, s.catalogOpts...)
	s.mu.Lock()
	s.catalog = cat
	s.parties = parties
	s.categories = categories
	s.mu.Unlock()
	s.logger.Debug("invoice session loaded",
		slog.Int("products", cat.Len()),
		slog.Int("parties", len(parties)),
		slog.Int("categories", len(categories)))
	return nil
}

// Restore replaces the draft with a previously saved one, e.g. after a
// restart. The draft keeps its own id, seq and kind.
func (s *Session) Restore(d Draft) {
	if !d.Kind.Valid() {
		d.Kind = KindSales
	}
	if len(d.Lines) == 0 {
		d.Lines = []LineItem{NewLine()}
	}
	s.mu.Lock()
	s.draft = d.Clone()
	s.mu.Unlock()
}

// Catalog returns the current catalog.
func (s *Session) Catalog() *catalog.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// Parties returns the loaded party options.
func (s *Session) Parties() []catalog.PartyOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.PartyOption(nil), s.parties...)
}

// Categories returns the loaded category options.
func (s *Session) Categories() []catalog.CategoryOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.CategoryOption(nil), s.categories...)
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Totals recomputes the current totals.
func (s *Session) Totals() Totals {
	return s.Draft().Totals()
}

// Busy reports whether a submission is outstanding.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Edit applies fn to the draft under the session lock. It fails with
// ErrSubmitInFlight while a submission is outstanding.
func (s *Session) Edit(fn func(d *Draft, cat *catalog.Catalog) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy.Load() {
		return ErrSubmitInFlight
	}
	return fn(&s.draft, s.catalog)
}

// SelectParty sets the party by id; an empty id clears it.
func (s *Session) SelectParty(id string) error {
	return s.Edit(func(d *Draft, _ *catalog.Catalog) error {
		if id == "" {
			d.SelectParty(nil)
			return nil
		}
		for _, p := range s.parties {
			if p.ID == id {
				opt := p
				d.SelectParty(&opt)
				return nil
			}
		}
		return fmt.Errorf("%w: party %q", ErrUnknownOption, id)
	})
}

// AddLine appends an empty row and returns its index.
func (s *Session) AddLine() (int, error) {
	var idx int
	err := s.Edit(func(d *Draft, _ *catalog.Catalog) error {
		idx = d.AddLine()
		return nil
	})
	return idx, err
}

// RemoveLine drops a row; the last row is never removed.
func (s *Session) RemoveLine(i int) (bool, error) {
	var removed bool
	err := s.Edit(func(d *Draft, _ *catalog.Catalog) error {
		removed = d.RemoveLine(i)
		return nil
	})
	return removed, err
}

// SelectProduct points row i at the catalog entry with key.
func (s *Session) SelectProduct(i int, key string) error {
	return s.Edit(func(d *Draft, cat *catalog.Catalog) error {
		entry, ok := cat.Entry(key)
		if !ok {
			return fmt.Errorf("%w: product %q", ErrUnknownOption, key)
		}
		opt := catalog.ProductOption{Key: entry.Key, Name: entry.Label}
		return updateLine(d, i, func(l LineItem) LineItem { return SelectProduct(l, cat, opt) })
	})
}

// SelectUnit changes the unit of row i. Once a product is chosen the unit
// must be one the product is offered in.
func (s *Session) SelectUnit(i int, unit string) error {
	return s.Edit(func(d *Draft, cat *catalog.Catalog) error {
		if i < 0 || i >= len(d.Lines) {
			return fmt.Errorf("%w: %d", ErrLineOutOfRange, i)
		}
		if key := d.Lines[i].ProductKey; key != "" {
			entry, ok := cat.Entry(key)
			if !ok || !entry.HasUnit(unit) {
				return fmt.Errorf("%w: unit %q", ErrUnknownOption, unit)
			}
		}
		return updateLine(d, i, func(l LineItem) LineItem { return SelectUnit(l, cat, unit) })
	})
}

// SetQuantity stores the raw quantity of row i.
func (s *Session) SetQuantity(i int, qty string) error {
	return s.Edit(func(d *Draft, _ *catalog.Catalog) error {
		return updateLine(d, i, func(l LineItem) LineItem { return SetQuantity(l, qty) })
	})
}

// SetPrice overrides the price of row i.
func (s *Session) SetPrice(i int, price string) error {
	return s.Edit(func(d *Draft, _ *catalog.Catalog) error {
		return updateLine(d, i, func(l LineItem) LineItem { return SetPrice(l, price) })
	})
}

// SelectCategory attaches the category with id to row i; "" clears it.
func (s *Session) SelectCategory(i int, id string) error {
	return s.Edit(func(d *Draft, _ *catalog.Catalog) error {
		var opt *catalog.CategoryOption
		if id != "" {
			for _, c := range s.categories {
				if c.ID == id {
					found := c
					opt = &found
					break
				}
			}
			if opt == nil {
				return fmt.Errorf("%w: category %q", ErrUnknownOption, id)
			}
		}
		return updateLine(d, i, func(l LineItem) LineItem { return SelectCategory(l, opt) })
	})
}

// SetPayment stores discount, paid and note.
func (s *Session) SetPayment(discount, paid, note string) error {
	return s.Edit(func(d *Draft, _ *catalog.Catalog) error {
		d.Discount, d.Paid, d.Note = discount, paid, note
		return nil
	})
}

// Submit validates the draft and hands it to sink. On success the draft is
// reset; on a sink failure it is preserved and a *TransportError returned.
func (s *Session) Submit(ctx context.Context, sink Sink) (StoredInvoice, error) {
	s.mu.Lock()
	if !s.busy.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return StoredInvoice{}, ErrSubmitInFlight
	}
	snapshot := s.draft.Clone()
	cat := s.catalog
	s.mu.Unlock()
	defer s.busy.Store(false)

	sub, err := BuildSubmission(snapshot, cat)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) && verr.Class() == ClassResolution {
			s.logger.Warn("invoice line no longer resolves against catalog",
				slog.String("draft", snapshot.ID),
				slog.Int("line", verr.Line),
				slog.String("product", verr.Label),
				slog.String("unit", verr.Unit))
		}
		return StoredInvoice{}, err
	}

	stored, err := sink.Submit(ctx, sub)
	if err != nil {
		s.logger.Error("invoice submission failed", slog.String("draft", snapshot.ID), slog.Any("error", err))
		return StoredInvoice{}, &TransportError{Err: err}
	}

	s.mu.Lock()
	s.draft.Reset()
	s.mu.Unlock()
	return stored, nil
}

func updateLine(d *Draft, i int, fn func(LineItem) LineItem) error {
	if !d.UpdateLine(i, fn) {
		return fmt.Errorf("%w: %d", ErrLineOutOfRange, i)
	}
	return nil
}
