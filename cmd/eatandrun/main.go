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

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/app"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/auth"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/catalog"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/ledger"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/observability"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/orders"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/cache"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/db"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/pricing"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/tracking"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/weeks"
	"github.com/GonzaJCalderon/EatAndRun-Back/jobs"
)

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

	clk, err := cfg.Clock()
	if err != nil {
		logger.Error("business clock", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.PGAutoMigrate {
		if err := db.Migrate(cfg.PGDSN, logger); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authMW := auth.Middleware{Issuer: issuer, Logger: logger}

	queue := jobs.NewClient(cfg.Queue())
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	weekService := weeks.NewService(weeks.NewRepository(dbpool), clk, logger)

	names := catalog.NewCached(
		catalog.NewRepository(dbpool),
		cache.NewVersioned(redisClient, "catalog", cfg.CatalogCacheTTL),
		logger,
	)
	prices := pricing.NewStore(
		pricing.NewRepository(dbpool),
		cache.NewVersioned(redisClient, "pricing", cfg.PriceCacheTTL),
		logger,
	)
	pricingHandler := pricing.NewHandler(logger, prices, authMW)
	pricingHandler.SetRefresher(queue)

	hub := tracking.NewHub()
	go hub.Run(ctx)
	go func() {
		if err := tracking.Relay(ctx, redisClient, hub, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("tracking relay", slog.Any("error", err))
		}
	}()

	ledgerService := ledger.NewService(ledger.NewRepository(dbpool), logger, cfg.NoDeliveryReasonMin)
	ledgerService.SetPublisher(tracking.NewPublisher(redisClient))
	ledgerService.SetNotifier(queue)
	ledgerService.SetMetrics(metrics)

	orderService := orders.NewService(orders.NewRepository(dbpool), weekService, names, prices, logger)
	orderService.SetNotifier(queue)
	orderService.SetMetrics(metrics)

	inspector := asynq.NewInspector(cfg.Queue())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Auth:            authMW,
		WeeksHandler:    weeks.NewHandler(logger, weekService, authMW),
		OrdersHandler:   orders.NewHandler(logger, orderService, authMW),
		LedgerHandler:   ledger.NewHandler(logger, ledgerService, authMW),
		TrackingHandler: tracking.NewHandler(hub, ledgerService, logger, cfg.CORSOrigins),
		PricingHandler:  pricingHandler,
		JobHandler:      jobs.NewHandler(inspector, logger),
		Metrics:         metrics,
		Database:        dbpool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("tz", clk.Location().String()))
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
}
