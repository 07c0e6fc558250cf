package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-invoice/internal/backend"
	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
	"github.com/odyssey-erp/odyssey-invoice/internal/platform/db"
	"github.com/odyssey-erp/odyssey-invoice/internal/store"
)

// DataSource bundles the reference-data readers and the submission sink of
// the configured backend.
type DataSource struct {
	Sources invoice.Sources
	Sink    invoice.Sink
	// Invoices is nil when the backend cannot look stored invoices up.
	Invoices interface {
		Invoice(ctx context.Context, id string) (invoice.StoredInvoice, error)
	}
	close func()
}

// Close releases connections held by the data source.
func (d *DataSource) Close() {
	if d != nil && d.close != nil {
		d.close()
	}
}

// OpenDataSource connects to the backend selected by cfg.DataSource. With
// migrate set, the Postgres schema is applied before returning.
func OpenDataSource(ctx context.Context, cfg *Config, logger *slog.Logger, migrate bool) (*DataSource, error) {
	switch cfg.DataSource {
	case SourcePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
		if err != nil {
			return nil, err
		}
		st := store.New(pool)
		if migrate {
			if err := st.Migrate(ctx); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return &DataSource{
			Sources:  invoice.Sources{Products: st, Parties: st, Categories: st},
			Sink:     st,
			Invoices: st,
			close:    pool.Close,
		}, nil
	case SourceBackend:
		client := backend.NewClient(backend.Config{
			BaseURL: cfg.BackendURL,
			Token:   cfg.BackendToken,
			Timeout: cfg.BackendTimeout,
		}, logger)
		return &DataSource{
			Sources: invoice.Sources{Products: client, Parties: client, Categories: client},
			Sink:    client,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported data source %q", cfg.DataSource)
	}
}
