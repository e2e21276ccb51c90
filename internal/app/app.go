package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/solutions224/payments-core/internal/api"
	"github.com/solutions224/payments-core/internal/config"
	"github.com/solutions224/payments-core/internal/db"
	"github.com/solutions224/payments-core/internal/idempotency"
	"github.com/solutions224/payments-core/internal/ledger"
	"github.com/solutions224/payments-core/internal/observability"
	"github.com/solutions224/payments-core/internal/provider"
	"github.com/solutions224/payments-core/internal/repository"
	"github.com/solutions224/payments-core/internal/service"
	"github.com/solutions224/payments-core/internal/worker"
)

// Run bootstraps the HTTP server and background workers, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	store := repository.NewStore(pool)
	idemStore := idempotency.NewStore(redisClient, store.DB(), cfg.IdempotencyTTL)
	gateway := ledger.NewPostgresGateway(store.DB(), cfg.LedgerTimeout)

	location, err := time.LoadLocation(cfg.LimitTimezone)
	if err != nil {
		return fmt.Errorf("load limit timezone %q: %w", cfg.LimitTimezone, err)
	}

	fees := service.NewFeeCalculator(service.DefaultFeeSchedules())
	limits := service.NewLimitService(store, location, cfg.DefaultDailyLimit, cfg.DefaultMonthlyLimit)
	transfers := service.NewTransferService(gateway, fees, limits)
	audit := service.NewAuditService(store)
	escrow := service.NewEscrowService(store, gateway, audit)
	payments := service.NewPaymentMethodService(transfers, provider.NewSimulatedMobileMoney())
	queue := service.NewQueueService(store, transfers, payments, gateway, fees, audit, service.LogAlerter{}, cfg.QueueMaxAttempts, cfg.LedgerTimeout)
	webhooks := service.NewWebhookService(store, audit, cfg.WebhookHMACKey, cfg.WebhookSkipSignature)
	reconciliation := service.NewReconciliationService(store, gateway)

	queueWorker := worker.NewQueueWorker(queue).
		WithPollInterval(cfg.QueuePollInterval).
		WithBatchSize(cfg.QueueBatchSize)
	stopQueue := queueWorker.Run(ctx)
	logger.Info("queue worker started", zap.Duration("interval", cfg.QueuePollInterval), zap.Int32("batch", cfg.QueueBatchSize))

	reconWorker := worker.NewReconciliationWorker(reconciliation).
		WithInterval(cfg.ReconciliationInterval)
	stopRecon := reconWorker.Run(ctx)
	logger.Info("reconciliation worker started", zap.Duration("interval", cfg.ReconciliationInterval))

	router := api.NewRouter(cfg, logger, store.DB(), redisClient, idemStore, gateway, transfers, escrow, queue, webhooks)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	stopQueue()
	stopRecon()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
