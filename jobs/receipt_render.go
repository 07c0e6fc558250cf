package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-invoice/internal/jobs"
	"github.com/odyssey-erp/odyssey-invoice/internal/receipt"
)

// ReceiptPDF renders a receipt to PDF bytes.
type ReceiptPDF interface {
	PDF(ctx context.Context, rc receipt.Receipt) ([]byte, error)
}

// ReceiptRenderJob turns queued receipts into PDF files on disk.
type ReceiptRenderJob struct {
	Renderer   ReceiptPDF
	StorageDir string
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewReceiptRenderJob wires dependencies for the render handler.
func NewReceiptRenderJob(renderer ReceiptPDF, storageDir string, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReceiptRenderJob {
	return &ReceiptRenderJob{Renderer: renderer, StorageDir: storageDir, Logger: logger, Metrics: metrics}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *ReceiptRenderJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Renderer == nil {
		return errors.New("receipt render: handler not configured")
	}
	var payload ReceiptRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Receipt.InvoiceNo == "" && payload.Receipt.InvoiceID == "" {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskReceiptRender)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	pdf, err := j.Renderer.PDF(ctx, payload.Receipt)
	if err != nil {
		return fmt.Errorf("receipt render: %w", err)
	}
	path, err := j.save(payload.Receipt, pdf)
	if err != nil {
		return err
	}
	j.Metrics.ObserveReceipt(len(pdf))
	j.logger().Info("receipt ready",
		slog.String("invoice_no", payload.Receipt.InvoiceNo),
		slog.String("file", path))
	return nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func receiptFileName(rc receipt.Receipt) string {
	name := rc.InvoiceNo
	if name == "" {
		name = rc.InvoiceID
	}
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "._")
	if name == "" {
		name = "receipt"
	}
	return name + ".pdf"
}

func (j *ReceiptRenderJob) save(rc receipt.Receipt, pdf []byte) (string, error) {
	dir := j.StorageDir
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(os.TempDir(), "receipts")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, receiptFileName(rc))
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (j *ReceiptRenderJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
