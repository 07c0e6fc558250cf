// Package backend talks to the upstream REST API that owns products,
// parties, categories and persisted invoices.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
)

// ErrUnauthorized is returned when the API rejects the bearer token.
var ErrUnauthorized = errors.New("backend: unauthorized")

// APIError is a non-2xx response other than 401.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
}

// Config configures the client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client implements the invoice product, party and category sources plus the
// submission sink against the REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a client. A zero timeout falls back to 20s.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Products lists product records.
func (c *Client) Products(ctx context.Context) ([]catalog.ProductRecord, error) {
	var docs []productDTO
	if err := c.do(ctx, http.MethodGet, "/api/products", nil, nil, &docs); err != nil {
		return nil, err
	}
	records := make([]catalog.ProductRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.record())
	}
	return records, nil
}

// Parties lists customers for sales and suppliers for purchases.
func (c *Client) Parties(ctx context.Context, kind invoice.Kind) ([]catalog.PartyOption, error) {
	path := "/api/customers"
	if kind == invoice.KindPurchase {
		path = "/api/suppliers"
	}
	var docs []namedDTO
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &docs); err != nil {
		return nil, err
	}
	out := make([]catalog.PartyOption, 0, len(docs))
	for _, d := range docs {
		out = append(out, catalog.PartyOption{ID: d.ID, Name: d.Name})
	}
	return out, nil
}

// Categories lists reporting categories.
func (c *Client) Categories(ctx context.Context) ([]catalog.CategoryOption, error) {
	var docs []namedDTO
	if err := c.do(ctx, http.MethodGet, "/api/categories", nil, nil, &docs); err != nil {
		return nil, err
	}
	out := make([]catalog.CategoryOption, 0, len(docs))
	for _, d := range docs {
		out = append(out, catalog.CategoryOption{ID: d.ID, Name: d.Name})
	}
	return out, nil
}

// Submit creates the invoice. The submission reference is sent as the
// Idempotency-Key header so a retried submit is not stored twice by APIs
// that honour it.
func (c *Client) Submit(ctx context.Context, sub invoice.Submission) (invoice.StoredInvoice, error) {
	path := "/api/invoices/sales"
	if sub.Kind == invoice.KindPurchase {
		path = "/api/invoices/purchases"
	}
	headers := map[string]string{}
	if sub.Reference != "" {
		headers["Idempotency-Key"] = sub.Reference
	}
	var doc storedInvoiceDTO
	if err := c.do(ctx, http.MethodPost, path, newInvoicePayload(sub), headers, &doc); err != nil {
		return invoice.StoredInvoice{}, err
	}
	return doc.stored(sub.Kind), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, dest any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode %s: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: build %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("backend rejected token", slog.String("path", path))
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return nil
}

// errorMessage prefers the API's {"message": ...} body over the status text.
func errorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return http.StatusText(resp.StatusCode)
}
