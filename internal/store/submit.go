package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
	"github.com/odyssey-erp/odyssey-invoice/internal/platform/db"
)

const referenceConstraint = "invoices_reference_key"

// errReplay aborts the insert transaction when the reference already exists.
var errReplay = errors.New("store: reference already stored")

// Submit persists the submission in one transaction. A submission whose
// reference was stored before returns the earlier invoice instead of a
// duplicate, so client retries after a lost response are safe.
func (s *Store) Submit(ctx context.Context, sub invoice.Submission) (invoice.StoredInvoice, error) {
	if !sub.Kind.Valid() {
		return invoice.StoredInvoice{}, fmt.Errorf("store: unsupported invoice kind %q", sub.Kind)
	}
	if sub.Reference == "" {
		sub.Reference = uuid.NewString()
	}
	totals := sub.Totals()
	id := uuid.NewString()
	now := s.clock()

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var seq int64
		if err := tx.QueryRow(ctx, `SELECT nextval('invoice_no_seq')`).Scan(&seq); err != nil {
			return fmt.Errorf("store: next invoice number: %w", err)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO invoices (id, invoice_no, reference, kind, party_id,
			                      sub_total, discount, grand_total, paid, due, note, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			id, InvoiceNumber(sub.Kind, now, seq), sub.Reference, string(sub.Kind), sub.PartyID,
			totals.Subtotal, sub.Discount, totals.GrandTotal, sub.Paid, totals.Due, sub.Note, now,
		)
		if err != nil {
			if db.IsUniqueViolation(err, referenceConstraint) {
				return errReplay
			}
			return fmt.Errorf("store: insert invoice: %w", err)
		}

		batch := &pgx.Batch{}
		for i, line := range sub.Lines {
			batch.Queue(`
				INSERT INTO invoice_items (invoice_id, line_no, product_id, category_id, category_name, unit, quantity, price)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				id, i+1, line.ProductID, line.CategoryID, line.CategoryLabel, line.Unit, line.Quantity, line.Price,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("store: insert items: %w", err)
		}
		return nil
	})
	return finishSubmit(ctx, s.pool, err, sub.Reference, id)
}

// finishSubmit loads the invoice a submit transaction produced. A replayed
// reference resolves to the invoice stored by the first attempt.
func finishSubmit(ctx context.Context, q queryer, txErr error, reference, id string) (invoice.StoredInvoice, error) {
	switch {
	case errors.Is(txErr, errReplay):
		return loadInvoice(ctx, q, `i.reference = $1`, reference)
	case txErr != nil:
		return invoice.StoredInvoice{}, txErr
	}
	return loadInvoice(ctx, q, `i.id = $1`, id)
}

// InvoiceNumber formats the human facing number, e.g. S-20250301-000042.
func InvoiceNumber(kind invoice.Kind, at time.Time, seq int64) string {
	prefix := "S"
	if kind == invoice.KindPurchase {
		prefix = "P"
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, at.Format("20060102"), seq)
}
