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

	"github.com/ayo6706/hold-ledger/internal/api"
	"github.com/ayo6706/hold-ledger/internal/config"
	"github.com/ayo6706/hold-ledger/internal/db"
	"github.com/ayo6706/hold-ledger/internal/idempotency"
	"github.com/ayo6706/hold-ledger/internal/observability"
	"github.com/ayo6706/hold-ledger/internal/repository"
	"github.com/ayo6706/hold-ledger/internal/service"
	"github.com/ayo6706/hold-ledger/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// backend is the storage both the Postgres and in-memory stores provide.
type backend interface {
	service.QueryStore
	Ping(ctx context.Context) error
}

// Run bootstraps the HTTP server and reconciliation worker, blocking until shutdown.
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

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// A nil *redis.Client must not leak into the interface.
	var cache redis.Cmdable
	if cfg.RedisURL != "" {
		client, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		cache = client
	} else {
		logger.Info("redis not configured, idempotency served from the store only")
	}
	idemStore := idempotency.NewStore(cache, store.Queries(), cfg.IdempotencyTTL)

	ledger := service.NewLedgerService(store, cfg.Catalog)
	locks := service.NewLockCoordinator(store, cfg.Catalog)
	credit := service.NewCreditService(store, cfg.DefaultCreditLimit)

	reconWorker := worker.NewReconciliationWorker(service.NewReconciliationService(store)).
		WithInterval(cfg.ReconciliationInterval)
	stopWorker := reconWorker.Run(ctx)
	logger.Info("reconciliation worker started", zap.Duration("interval", cfg.ReconciliationInterval))

	svc := api.Services{
		Holds:    service.NewHoldService(store, cfg.Catalog, ledger, locks, credit),
		Accounts: service.NewAccountService(store, ledger, locks),
		Credit:   credit,
		Ledger:   reconWorker,
	}

	router := api.NewRouter(cfg, logger, store, idemStore, cache, svc)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort), zap.String("storage", cfg.Storage))
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

	logger.Info("stopping reconciliation worker")
	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (backend, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return repository.NewMemoryStore(cfg.LockTimeout), func() {}, nil
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.MigrationsDir != "" {
		if err := db.Migrate(pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("schema up to date", zap.String("migrations_dir", cfg.MigrationsDir))
	}
	return repository.NewStore(pool, cfg.LockTimeout), pool.Close, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
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
