package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
	jobmetrics "github.com/odyssey-erp/odyssey-invoice/internal/jobs"
)

// CatalogWarmer refreshes cached product records.
type CatalogWarmer interface {
	Warm(ctx context.Context) ([]catalog.ProductRecord, error)
}

// CatalogWarmupJob pre-populates the product cache so the first editing
// session after a deploy or a bump does not pay for the full product load.
type CatalogWarmupJob struct {
	Warmer  CatalogWarmer
	Options []catalog.Option
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCatalogWarmupJob wires dependencies for the warmup handler.
func NewCatalogWarmupJob(warmer CatalogWarmer, opts []catalog.Option, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogWarmupJob {
	return &CatalogWarmupJob{Warmer: warmer, Options: opts, Logger: logger, Metrics: metrics}
}

// Handle processes catalog warmup tasks.
func (j *CatalogWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Warmer == nil {
		return errors.New("catalog warmup: handler not configured")
	}
	var payload CatalogWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Reason == "" {
		payload.Reason = "scheduled"
	}

	tracker := j.Metrics.Track(TaskCatalogWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("reason", payload.Reason))

	records, err := j.Warmer.Warm(ctx)
	if err != nil {
		logger.Error("catalog warmup", slog.Any("error", err))
		return err
	}
	cat := catalog.Build(records, j.Options...)
	j.Metrics.SetCatalogEntries(cat.Len())
	logger.Info("catalog warmed", slog.Int("records", len(records)), slog.Int("entries", cat.Len()))
	return nil
}
