// Package main is the entry point for the lab background worker.
// It accrues salaries for every active organization and purges expired idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"dentallab/internal/config"
	"dentallab/internal/domain/salary"
	"dentallab/internal/infrastructure/cache"
	"dentallab/internal/infrastructure/lock"
	"dentallab/internal/infrastructure/storage/postgres"
	"dentallab/internal/infrastructure/storage/postgres/salary_repo"
	"dentallab/pkg/logger"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
		Fields:      map[string]any{"process": "worker"},
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting dentallab worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.AppName = "dentallab-worker"
	poolCfg.MaxConns = 5
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	txOpts := postgres.DefaultTxOptions()
	txOpts.Retries = cfg.DBDeadlockRetries
	txm := postgres.NewTxManager(pool, txOpts)

	// Without redis the worker may race an on-demand accrual; the salary upsert keeps it consistent.
	var locker salary.Locker
	if cfg.RedisAddress != "" {
		rdb, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer func() { _ = rdb.Close() }()
		locker = lock.New(rdb)
	}

	policy, err := salary.NewAttributionPolicy(cfg.SalaryAttribution, cfg.SalaryAttributionExpr)
	if err != nil {
		log.Fatalw("invalid salary attribution policy", "error", err)
	}
	salaryRepo := salary_repo.New(txm)

	worker := NewWorker(Jobs{
		Organizations: salaryRepo,
		Accruer:       salary.NewService(salaryRepo, policy, locker),
		Idempotency:   postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL),
		Pool:          pool,
	}, cfg.AccrualInterval, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}
