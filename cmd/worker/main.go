package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/app"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/catalog"
	jobmetrics "github.com/GonzaJCalderon/EatAndRun-Back/internal/jobs"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/cache"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/db"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/idempotency"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/pricing"
	"github.com/GonzaJCalderon/EatAndRun-Back/jobs"
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

	clk, err := cfg.Clock()
	if err != nil {
		logger.Error("business clock", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)

	prices := pricing.NewStore(
		pricing.NewRepository(pool),
		cache.NewVersioned(redisClient, "pricing", cfg.PriceCacheTTL),
		logger,
	)
	names := catalog.NewCached(
		catalog.NewRepository(pool),
		cache.NewVersioned(redisClient, "catalog", cfg.CatalogCacheTTL),
		logger,
	)

	notifyJob := jobs.NewNotifyJob(logger, metrics)
	invalidateJob := jobs.NewPricingInvalidateJob(logger, metrics, prices, names)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotency.NewStore(pool), logger, metrics)

	nightlyInvalidate, err := jobs.NewPricingInvalidateTask("nightly refresh")
	if err != nil {
		logger.Error("build invalidate task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(int(cfg.IdempotencyRetention / time.Hour))
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Queue(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Location:    clk.Location(),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOrderPlaced, Handler: notifyJob.HandleOrderPlaced},
			{Type: jobs.TaskOrderStatusChanged, Handler: notifyJob.HandleStatusChanged},
			{Type: jobs.TaskPricingInvalidate, Handler: invalidateJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "5 6 * * *", Task: nightlyInvalidate, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
