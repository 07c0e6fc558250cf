package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-invoice/internal/receipt"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReceiptRender renders a stored invoice receipt to PDF.
	TaskReceiptRender = "invoice:receipt_render"
	// TaskCatalogWarmup refreshes the cached product catalog.
	TaskCatalogWarmup = "catalog:warmup"
)

// ReceiptRenderPayload carries the print model of a stored invoice, so the
// worker needs no access to the data source that produced it.
type ReceiptRenderPayload struct {
	Receipt receipt.Receipt `json:"receipt"`
}

// CatalogWarmupPayload describes why a warmup was requested.
type CatalogWarmupPayload struct {
	Reason string `json:"reason"`
}

// NewReceiptRenderTask constructs an Asynq task.
func NewReceiptRenderTask(rc receipt.Receipt) (*asynq.Task, error) {
	data, err := json.Marshal(ReceiptRenderPayload{Receipt: rc})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReceiptRender, data), nil
}

// NewCatalogWarmupTask constructs an Asynq task.
func NewCatalogWarmupTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(CatalogWarmupPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogWarmup, data), nil
}
