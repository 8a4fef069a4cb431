package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sudhir1041/nursery-orders/internal/backfill"
	"github.com/sudhir1041/nursery-orders/internal/cron"
	"github.com/sudhir1041/nursery-orders/internal/orders"
	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/config"
	"github.com/sudhir1041/nursery-orders/pkg/db"
	"github.com/sudhir1041/nursery-orders/pkg/instance"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
	"github.com/sudhir1041/nursery-orders/pkg/metrics"
	"github.com/sudhir1041/nursery-orders/pkg/migrate"
	"github.com/sudhir1041/nursery-orders/pkg/outbox"
	"github.com/sudhir1041/nursery-orders/pkg/redis"
)

const lockNameFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), cfg.Sync.CronLockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, outbox.NewService(outboxRepo, logg), nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	runner, err := backfill.NewRunner(backfill.RunnerParams{
		Orders:  ordersService,
		Cursors: backfill.NewCursorStore(dbClient.DB()),
		Logger:  logg,
		Metrics: syncMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create backfill runner", err)
		os.Exit(1)
	}

	adapters, skipped := sources.ConfiguredAdapters(cfg, sources.Deps{Logger: logg, Metrics: syncMetrics})
	for _, source := range skipped {
		logg.Warn(logg.WithSource(context.Background(), string(source)), "platform credentials missing; incremental sync disabled")
	}

	registry, err := cron.NewRegistry()
	if err != nil {
		logg.Error(context.Background(), "failed to create cron registry", err)
		os.Exit(1)
	}
	incremental, err := cron.NewIncrementalSyncJob(cron.IncrementalSyncJobParams{
		Logger:     logg,
		Runner:     runner,
		Adapters:   adapters,
		PerPage:    cfg.Sync.BackfillPerPage,
		MaxBatches: cfg.Sync.IncrementalMaxBatches,
	})
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "incremental sync job not registered")
	} else if err := registry.Register(incremental); err != nil {
		logg.Error(context.Background(), "failed to register incremental sync job", err)
		os.Exit(1)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		DLQ:         outbox.NewDLQRepository(dbClient.DB()),
		Retention:   cfg.Outbox.Retention,
		MaxAttempts: cfg.Outbox.MaxAttempts,
		Every:       cfg.Outbox.RetentionEvery,
	})
	if err == nil {
		err = registry.Register(retention)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to register outbox retention job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Sync.CronInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"instance":    instance.GetID(),
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if addr := cfg.App.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, prometheus.DefaultGatherer); err != nil {
				logg.Error(logg.WithField(ctx, "addr", addr), "metrics listener stopped", err)
			}
		}()
	}

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockNameFormat, env)
}
