package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-invoice/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-invoice/internal/api"
	"github.com/odyssey-erp/odyssey-invoice/internal/app"
	"github.com/odyssey-erp/odyssey-invoice/internal/catalogcache"
	"github.com/odyssey-erp/odyssey-invoice/internal/drafts"
	"github.com/odyssey-erp/odyssey-invoice/internal/observability"
	"github.com/odyssey-erp/odyssey-invoice/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-invoice/internal/receipt"
	"github.com/odyssey-erp/odyssey-invoice/jobs"
	"github.com/odyssey-erp/odyssey-invoice/report"
)

const usage = `usage: odyssey [serve | migrate | jobs trigger <task> | jobs stats]`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}
	switch args[0] {
	case "serve":
		err = serve(ctx, stop, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg, logger)
	case "jobs":
		err = runJobs(ctx, cfg, args[1:])
	default:
		err = fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("odyssey", slog.Any("error", err))
		os.Exit(1)
	}
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.DataSource != app.SourcePostgres {
		return fmt.Errorf("migrate requires DATA_SOURCE=%s", app.SourcePostgres)
	}
	ds, err := app.OpenDataSource(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	ds.Close()
	logger.Info("schema applied")
	return nil
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		_ = jobsCLI.Close()
	}()

	switch {
	case len(args) == 2 && args[0] == "trigger":
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
		return nil
	case len(args) == 1 && args[0] == "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		return cli.WriteStats(os.Stdout, stats)
	default:
		return errors.New(usage)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	ds, err := app.OpenDataSource(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer ds.Close()

	formatter, err := receipt.NewFormatter(cfg.Currency)
	if err != nil {
		return err
	}
	reportClient := report.NewClient(cfg.GotenbergURL)
	renderer, err := receipt.NewRenderer(reportClient)
	if err != nil {
		return fmt.Errorf("init receipt renderer: %w", err)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	products := catalogcache.New(redisClient, ds.Sources.Products, cfg.CatalogCacheTTL, logger)
	sources := ds.Sources
	sources.Products = products

	metrics := observability.NewMetrics()
	cfgAPI := api.Config{
		Logger:         logger,
		Metrics:        metrics,
		Drafts:         drafts.NewStore(redisClient, cfg.DraftTTL),
		Sources:        sources,
		Sink:           products.Sink(ds.Sink),
		CatalogOptions: cfg.CatalogOptions(),
		Receipts:       jobClient,
		Renderer:       renderer,
		Company:        receipt.Company{Name: cfg.CompanyName, LogoURL: cfg.CompanyLogo},
		Formatter:      formatter,
		IdleTimeout:    cfg.SessionIdleTimeout,
	}
	if ds.Invoices != nil {
		cfgAPI.Invoices = ds.Invoices
	}
	service := api.NewService(cfgAPI)
	go service.Run(ctx)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		InvoiceHandler: api.NewHandler(logger, service),
		ReportHandler:  report.NewHandler(reportClient, logger),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("data_source", cfg.DataSource))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}
