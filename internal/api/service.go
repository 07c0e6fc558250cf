package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
	"github.com/odyssey-erp/odyssey-invoice/internal/observability"
	"github.com/odyssey-erp/odyssey-invoice/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-invoice/internal/receipt"
)

// ErrUpstream marks failures loading reference data.
var ErrUpstream = errors.New("api: reference data unavailable")

// DraftStore persists drafts between requests.
type DraftStore interface {
	Save(ctx context.Context, d invoice.Draft) error
	Get(ctx context.Context, id string) (invoice.Draft, error)
	Delete(ctx context.Context, id string) error
	LockSubmit(ctx context.Context, id string) (*cache.Lock, error)
}

// ReceiptQueue schedules asynchronous receipt rendering.
type ReceiptQueue interface {
	EnqueueReceipt(ctx context.Context, rc receipt.Receipt) error
}

// InvoiceLookup loads stored invoices for reprinting.
type InvoiceLookup interface {
	Invoice(ctx context.Context, id string) (invoice.StoredInvoice, error)
}

// Config wires the service dependencies. Receipts and Invoices are optional.
type Config struct {
	Logger         *slog.Logger
	Metrics        *observability.Metrics
	Drafts         DraftStore
	Sources        invoice.Sources
	Sink           invoice.Sink
	CatalogOptions []catalog.Option
	Receipts       ReceiptQueue
	Invoices       InvoiceLookup
	Renderer       *receipt.Renderer
	Company        receipt.Company
	Formatter      receipt.Formatter
	IdleTimeout    time.Duration
}

// SubmitResult is returned after a stored submission.
type SubmitResult struct {
	Invoice invoice.StoredInvoice `json:"invoice"`
	Receipt receipt.Receipt       `json:"receipt"`
	Draft   invoice.Draft         `json:"draft"`
}

type entry struct {
	session  *invoice.Session
	lastUsed time.Time
}

// Service keeps one invoice.Session per draft in memory and mirrors every
// change to the draft store, so any instance can pick a draft back up.
type Service struct {
	cfg   Config
	clock func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewService constructs the service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	return &Service{cfg: cfg, clock: time.Now, sessions: make(map[string]*entry)}
}

// Create starts a draft of kind with freshly loaded reference data.
func (s *Service) Create(ctx context.Context, kind invoice.Kind) (*invoice.Session, error) {
	sess := invoice.NewSession(kind, s.cfg.Logger, s.cfg.CatalogOptions...)
	if err := sess.Load(ctx, s.cfg.Sources); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if err := s.cfg.Drafts.Save(ctx, sess.Draft()); err != nil {
		return nil, err
	}
	s.remember(sess.Draft().ID, sess)
	return sess, nil
}

// Session returns the live session for id, restoring it from the draft store
// when this instance has not seen it yet.
func (s *Service) Session(ctx context.Context, id string) (*invoice.Session, error) {
	s.mu.Lock()
	if e, ok := s.sessions[id]; ok {
		e.lastUsed = s.clock()
		s.mu.Unlock()
		return e.session, nil
	}
	s.mu.Unlock()

	d, err := s.cfg.Drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sess := invoice.NewSession(d.Kind, s.cfg.Logger, s.cfg.CatalogOptions...)
	if err := sess.Load(ctx, s.cfg.Sources); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	sess.Restore(d)
	return s.remember(id, sess), nil
}

// Edit applies fn to the session and persists the resulting draft. The draft
// is saved even when fn fails, since partial edits may have been applied.
func (s *Service) Edit(ctx context.Context, id string, fn func(*invoice.Session) error) (*invoice.Session, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	editErr := fn(sess)
	if err := s.cfg.Drafts.Save(ctx, sess.Draft()); err != nil {
		return nil, err
	}
	return sess, editErr
}

// Reload refetches parties, products and categories for the draft.
func (s *Service) Reload(ctx context.Context, id string) (*invoice.Session, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.Load(ctx, s.cfg.Sources); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return sess, nil
}

// Delete discards a draft.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return s.cfg.Drafts.Delete(ctx, id)
}

// Submit validates and stores the draft. The draft store lock keeps other
// instances out; the session busy flag covers this one.
func (s *Service) Submit(ctx context.Context, id string) (SubmitResult, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return SubmitResult{}, err
	}
	kind := string(sess.Draft().Kind)

	lock, err := s.cfg.Drafts.LockSubmit(ctx, id)
	if err != nil {
		if errors.Is(err, invoice.ErrSubmitInFlight) {
			s.cfg.Metrics.ObserveSubmission(kind, "busy")
		}
		return SubmitResult{}, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.cfg.Logger.Warn("release submit lock", slog.String("draft", id), slog.Any("error", err))
		}
	}()

	rec := &recordingSink{next: s.cfg.Sink}
	stored, err := sess.Submit(ctx, rec)
	if err != nil {
		s.observeFailure(kind, err)
		return SubmitResult{}, err
	}
	s.cfg.Metrics.ObserveSubmission(kind, "stored")

	draft := sess.Draft()
	if err := s.cfg.Drafts.Save(ctx, draft); err != nil {
		s.cfg.Logger.Warn("save reset draft", slog.String("draft", id), slog.Any("error", err))
	}

	stored = receipt.Enrich(stored, sess.Catalog(), rec.sub.Lines)
	rc := receipt.Build(stored, s.cfg.Company, s.cfg.Formatter)
	if s.cfg.Receipts != nil {
		if err := s.cfg.Receipts.EnqueueReceipt(ctx, rc); err != nil {
			s.cfg.Logger.Warn("enqueue receipt", slog.String("invoice", stored.ID), slog.Any("error", err))
		}
	}
	s.cfg.Logger.Info("invoice stored",
		slog.String("draft", id),
		slog.String("invoice_no", stored.InvoiceNo),
		slog.String("kind", kind))
	return SubmitResult{Invoice: stored, Receipt: rc, Draft: draft}, nil
}

// Catalog builds a catalog from the current product records.
func (s *Service) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	records, err := s.cfg.Sources.Products.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return catalog.Build(records, s.cfg.CatalogOptions...), nil
}

// Receipt renders the HTML receipt of a stored invoice.
func (s *Service) Receipt(ctx context.Context, invoiceID string) (string, error) {
	if s.cfg.Invoices == nil || s.cfg.Renderer == nil {
		return "", errReceiptsDisabled
	}
	stored, err := s.cfg.Invoices.Invoice(ctx, invoiceID)
	if err != nil {
		return "", err
	}
	return s.cfg.Renderer.HTML(receipt.Build(stored, s.cfg.Company, s.cfg.Formatter))
}

// Run evicts idle sessions until ctx is done. Evicted drafts stay in the
// draft store and are restored on next access.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.prune(now)
		}
	}
}

func (s *Service) prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, e := range s.sessions {
		if now.Sub(e.lastUsed) > s.cfg.IdleTimeout && !e.session.Busy() {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (s *Service) remember(id string, sess *invoice.Session) *invoice.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		e.lastUsed = s.clock()
		return e.session
	}
	s.sessions[id] = &entry{session: sess, lastUsed: s.clock()}
	return sess
}

func (s *Service) observeFailure(kind string, err error) {
	var verr *invoice.ValidationError
	var terr *invoice.TransportError
	switch {
	case errors.As(err, &verr):
		s.cfg.Metrics.ObserveSubmission(kind, "invalid")
		s.cfg.Metrics.ObserveValidationFailure(string(verr.Code))
	case errors.Is(err, invoice.ErrSubmitInFlight):
		s.cfg.Metrics.ObserveSubmission(kind, "busy")
	case errors.As(err, &terr):
		s.cfg.Metrics.ObserveSubmission(kind, "transport_error")
	default:
		s.cfg.Metrics.ObserveSubmission(kind, "error")
	}
}

// recordingSink keeps the submission handed to the real sink so the receipt
// can fall back to the submitted category labels.
type recordingSink struct {
	next invoice.Sink
	sub  invoice.Submission
}

func (r *recordingSink) Submit(ctx context.Context, sub invoice.Submission) (invoice.StoredInvoice, error) {
	r.sub = sub
	return r.next.Submit(ctx, sub)
}
