// Package main is the entry point for the lab API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"dentallab/internal/config"
	corecache "dentallab/internal/core/cache"
	"dentallab/internal/domain/auth"
	"dentallab/internal/domain/inventory"
	"dentallab/internal/domain/orders"
	"dentallab/internal/domain/pricing"
	"dentallab/internal/domain/salary"
	"dentallab/internal/infrastructure/cache"
	v1 "dentallab/internal/infrastructure/http/v1"
	"dentallab/internal/infrastructure/http/v1/handlers"
	"dentallab/internal/infrastructure/lock"
	"dentallab/internal/infrastructure/notification"
	"dentallab/internal/infrastructure/numerator"
	"dentallab/internal/infrastructure/storage/postgres"
	"dentallab/internal/infrastructure/storage/postgres/inventory_repo"
	"dentallab/internal/infrastructure/storage/postgres/order_repo"
	"dentallab/internal/infrastructure/storage/postgres/pricing_repo"
	"dentallab/internal/infrastructure/storage/postgres/salary_repo"
	"dentallab/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
		Fields:      map[string]any{"process": "server"},
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()
	log.Infow("starting dentallab server", "env", cfg.AppEnv)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	txOpts := postgres.DefaultTxOptions()
	txOpts.Retries = cfg.DBDeadlockRetries
	txm := postgres.NewTxManager(pool, txOpts)

	codec, err := postgres.NewPayloadCodec(postgres.DefaultCompressThreshold)
	if err != nil {
		log.Fatalw("failed to create payload codec", "error", err)
	}

	// --- Redis (optional) ---
	var (
		rdb       *redis.Client
		dataCache corecache.Cache = corecache.Nop{}
		locker    salary.Locker
	)
	if cfg.RedisAddress != "" {
		rdb, err = cache.NewRedisClient(ctx, cache.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer func() { _ = rdb.Close() }()
		dataCache = cache.NewRedisCache(rdb)
		locker = lock.New(rdb)
		log.Infow("redis enabled", "address", cfg.RedisAddress)
	} else {
		log.Warn("REDIS_ADDRESS not set: order cache and salary locks are disabled")
	}

	// --- Notifications ---
	sinks := []notification.Sink{notification.NewStore(txm)}
	if cfg.PubSubProjectID != "" {
		publisher, err := notification.NewPublisher(ctx, notification.PubSubConfig{
			ProjectID:       cfg.PubSubProjectID,
			Topic:           cfg.PubSubTopic,
			CredentialsJSON: cfg.PubSubCredentialsJSON,
		})
		if err != nil {
			log.Fatalw("failed to create pubsub publisher", "error", err)
		}
		defer func() { _ = publisher.Close() }()
		sinks = append(sinks, publisher)
		log.Infow("pubsub notifications enabled", "topic", cfg.PubSubTopic)
	}
	notifier := notification.NewFanout(sinks...)

	// --- Stage templates ---
	templates := cache.NewStageTemplateCache(pool.Pool, order_repo.NewStageTemplateRepo(txm))
	templates.Start(ctx)
	defer templates.Stop()

	// --- Domain services ---
	inventoryService := inventory.NewService(inventory_repo.New(txm), txm, notifier)
	priceResolver := pricing.NewResolver(pricing_repo.New(txm))

	orderService := orders.NewService(orders.Dependencies{
		Repo:      order_repo.New(txm, codec),
		Patients:  order_repo.NewPatientRepo(txm),
		Templates: templates,
		Prices:    priceResolver,
		Materials: inventoryService,
		Numbers:   numerator.NewFromTxManager(txm),
		TxManager: txm,
		Cache:     dataCache,
		Notifier:  notifier,
	}, orders.Config{
		NumberPad: cfg.OrderNumberPad,
		CacheTTL:  cfg.CacheTTL,
	})

	policy, err := salary.NewAttributionPolicy(cfg.SalaryAttribution, cfg.SalaryAttributionExpr)
	if err != nil {
		log.Fatalw("invalid salary attribution policy", "error", err)
	}
	salaryService := salary.NewService(salary_repo.New(txm), policy, locker)

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret, cfg.JWTIssuer))

	// --- Health ---
	checks := map[string]handlers.Pinger{"postgres": pool.Ping}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	health := handlers.NewHealthHandler(checks, func() any { return pool.Stats() })

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Development:  cfg.Development(),
		Orders:       orderService,
		Inventory:    inventoryService,
		Pricing:      priceResolver,
		Salary:       salaryService,
		Idempotency:  postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL),
		Health:       health,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.AppPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
