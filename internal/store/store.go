// Package store reads reference data from and persists invoices to
// PostgreSQL.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when an invoice lookup misses.
var ErrNotFound = errors.New("store: record not found")

// Store is the PostgreSQL implementation of the invoice sources and sink.
type Store struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

// New constructs a store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, clock: func() time.Time { return time.Now().UTC() }}
}

// Migrate creates the tables the store relies on when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Products lists active product records.
func (s *Store) Products(ctx context.Context) ([]catalog.ProductRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, unit, units, price::float8, stock::float8, group_id
		FROM products
		WHERE is_active
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list products: %w", err)
	}
	return scanProducts(rows)
}

func scanProducts(rows pgx.Rows) ([]catalog.ProductRecord, error) {
	defer rows.Close()

	var out []catalog.ProductRecord
	for rows.Next() {
		var rec catalog.ProductRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Unit, &rec.Units, &rec.Price, &rec.Stock, &rec.GroupID); err != nil {
			return nil, fmt.Errorf("store: scan product: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list products: %w", err)
	}
	return out, nil
}

// partyTables is a fixed allow-list; table names never come from input.
var partyTables = map[invoice.Kind]string{
	invoice.KindSales:    "customers",
	invoice.KindPurchase: "suppliers",
}

// Parties lists active customers or suppliers.
func (s *Store) Parties(ctx context.Context, kind invoice.Kind) ([]catalog.PartyOption, error) {
	table, ok := partyTables[kind]
	if !ok {
		return nil, fmt.Errorf("store: unsupported invoice kind %q", kind)
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id, name FROM %s WHERE is_active ORDER BY name`, table))
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", table, err)
	}
	defer rows.Close()

	var out []catalog.PartyOption
	for rows.Next() {
		var p catalog.PartyOption
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Categories lists reporting categories.
func (s *Store) Categories(ctx context.Context) ([]catalog.CategoryOption, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list categories: %w", err)
	}
	defer rows.Close()

	var out []catalog.CategoryOption
	for rows.Next() {
		var c catalog.CategoryOption
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Invoice loads a stored invoice with its items.
func (s *Store) Invoice(ctx context.Context, id string) (invoice.StoredInvoice, error) {
	return loadInvoice(ctx, s.pool, `i.id = $1`, id)
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadInvoice(ctx context.Context, q queryer, where string, arg string) (invoice.StoredInvoice, error) {
	var inv invoice.StoredInvoice
	var kind string
	err := q.QueryRow(ctx, `
		SELECT i.id, i.invoice_no, i.created_at, i.kind, i.party_id,
		       i.sub_total::float8, i.discount::float8, i.grand_total::float8,
		       i.paid::float8, i.due::float8, i.note
		FROM invoices i
		WHERE `+where, arg).Scan(
		&inv.ID, &inv.InvoiceNo, &inv.Date, &kind, &inv.PartyID,
		&inv.SubTotal, &inv.Discount, &inv.GrandTotal, &inv.Paid, &inv.Due, &inv.Note,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invoice.StoredInvoice{}, ErrNotFound
		}
		return invoice.StoredInvoice{}, fmt.Errorf("store: load invoice: %w", err)
	}
	inv.Kind = invoice.Kind(kind)

	rows, err := q.Query(ctx, `
		SELECT it.product_id, p.name, COALESCE(it.category_id, ''),
		       COALESCE(NULLIF(it.category_name, ''), c.name, ''),
		       it.unit, it.quantity::float8, it.price::float8
		FROM invoice_items it
		JOIN products p ON p.id = it.product_id
		LEFT JOIN categories c ON c.id = it.category_id
		WHERE it.invoice_id = $1
		ORDER BY it.line_no`, inv.ID)
	if err != nil {
		return invoice.StoredInvoice{}, fmt.Errorf("store: load items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it invoice.StoredItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.CategoryID, &it.CategoryName, &it.Unit, &it.Quantity, &it.Price); err != nil {
			return invoice.StoredInvoice{}, err
		}
		inv.Items = append(inv.Items, it)
	}
	return inv, rows.Err()
}
