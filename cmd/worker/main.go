package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/odyssey-invoice/internal/app"
	"github.com/odyssey-erp/odyssey-invoice/internal/catalogcache"
	jobmetrics "github.com/odyssey-erp/odyssey-invoice/internal/jobs"
	"github.com/odyssey-erp/odyssey-invoice/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-invoice/internal/receipt"
	"github.com/odyssey-erp/odyssey-invoice/jobs"
	"github.com/odyssey-erp/odyssey-invoice/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	ds, err := app.OpenDataSource(ctx, cfg, logger, false)
	if err != nil {
		logger.Error("open data source", slog.Any("error", err))
		os.Exit(1)
	}
	defer ds.Close()

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)

	pdfClient := report.NewClient(cfg.GotenbergURL)
	renderer, err := receipt.NewRenderer(pdfClient)
	if err != nil {
		logger.Error("init receipt renderer", slog.Any("error", err))
		os.Exit(1)
	}
	receiptJob := jobs.NewReceiptRenderJob(renderer, cfg.ReceiptDir, logger, metrics)

	products := catalogcache.New(redisClient, ds.Sources.Products, cfg.CatalogCacheTTL, logger)
	warmupJob := jobs.NewCatalogWarmupJob(products, cfg.CatalogOptions(), logger, metrics)

	warmupTask, err := jobs.NewCatalogWarmupTask("scheduled")
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.JobsConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReceiptRender, Handler: receiptJob.Handle},
			{Type: jobs.TaskCatalogWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CatalogWarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler(), ReadTimeout: cfg.AppReadTimeout}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			_ = metricsServer.Close()
		}()
	}

	logger.Info("worker started", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
