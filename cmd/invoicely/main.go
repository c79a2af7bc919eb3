package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/invoicely/invoicely/internal/analytics"
	analytichttp "github.com/invoicely/invoicely/internal/analytics/http"
	"github.com/invoicely/invoicely/internal/app"
	"github.com/invoicely/invoicely/internal/ledger"
	ledgerhttp "github.com/invoicely/invoicely/internal/ledger/http"
	"github.com/invoicely/invoicely/internal/observability"
	"github.com/invoicely/invoicely/internal/platform/cache"
	"github.com/invoicely/invoicely/jobs"
)

// warmupDelay leaves room for a burst of writes before the cache is rebuilt.
const warmupDelay = 5 * time.Second

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

	store, closeLedger, err := app.OpenLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("open ledger", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeLedger()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, running without cache and drafts", slog.Any("error", err))
		redisClient = nil
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	analyticsCache := analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL)
	if err := analyticsCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("subscribe cache invalidation", slog.Any("error", err))
	}
	analyticsService := analytics.NewService(store, analyticsCache, analytics.NewMetrics(metrics.Registerer()), logger)

	var (
		enqueuer  jobs.Enqueuer
		inspector jobs.QueueInspector
	)
	if redisClient != nil {
		redisOpts := redisClientOpt(cfg)
		client, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		queueInspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := queueInspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		enqueuer, inspector = client, queueInspector
	}

	refresher := jobs.NewCacheRefresher(analyticsCache, enqueuer, warmupDelay, logger)
	ledgerService := ledger.NewService(store, refresher, logger)
	settings := ledger.NewSettingsService(store, logger)

	var drafts ledgerhttp.DraftService
	if redisClient != nil {
		drafts = ledger.NewDraftStore(redisClient, cfg.DraftTTL).WithDefaults(settings)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		LedgerHandler:    ledgerhttp.NewHandler(logger, ledgerService, drafts).WithSettings(settings),
		AnalyticsHandler: analytichttp.NewHandler(logger, analyticsService, analytics.NewSequencer()),
		JobHandler:       jobs.NewHandler(inspector, enqueuer, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

func redisClientOpt(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}
