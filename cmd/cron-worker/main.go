package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/phoneshop-backend/internal/cron"
	"github.com/angelmondragon/phoneshop-backend/internal/inventory"
	"github.com/angelmondragon/phoneshop-backend/internal/orders"
	"github.com/angelmondragon/phoneshop-backend/pkg/config"
	"github.com/angelmondragon/phoneshop-backend/pkg/db"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
	"github.com/angelmondragon/phoneshop-backend/pkg/metrics"
	"github.com/angelmondragon/phoneshop-backend/pkg/migrate"
	"github.com/angelmondragon/phoneshop-backend/pkg/outbox"
	"github.com/angelmondragon/phoneshop-backend/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	err = run(cfg, logg, *once)
	if errors.Is(err, cron.ErrLockHeld) {
		logg.Info(context.Background(), "cron cycle skipped; lock held elsewhere")
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "cron worker shut down gracefully")
}

func run(cfg *config.Config, logg *logger.Logger, once bool) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var lock cron.Lock
	if cfg.Redis.Enabled() {
		redisClient, redisErr := redis.New(ctx, cfg.Redis, logg)
		if redisErr != nil {
			return redisErr
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		redisLock, lockErr := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Cron.LockTTL)
		if lockErr != nil {
			return lockErr
		}
		lock = redisLock
	} else {
		logg.Warn(ctx, "redis not configured; using a process-local cron lock")
		lock = cron.NewLocalLock()
	}

	jobMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	ordersRepo := orders.NewRepository(dbClient.DB())
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersService, err := orders.NewService(ordersRepo, dbClient, inventory.NewRepository(dbClient.DB()), orders.WithEvents(events))
	if err != nil {
		return err
	}
	expiryJob, err := cron.NewUnpaidExpiryJob(cron.UnpaidExpiryJobParams{
		Logger:    logg,
		Reader:    ordersRepo,
		Orders:    ordersService,
		Metrics:   jobMetrics,
		Window:    cfg.UnpaidExpiryWindow(),
		BatchSize: cfg.Cron.BatchSize,
	})
	if err != nil {
		return err
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    logg,
		DB:        dbClient,
		Outbox:    outbox.NewRepository(dbClient.DB()),
		Retention: cfg.Outbox.Retention,
	})
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   cron.NewRegistry(expiryJob, retentionJob),
		Lock:       lock,
		Metrics:    jobMetrics,
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
		"window":   cfg.UnpaidExpiryWindow().String(),
	})
	if once {
		logg.Info(ctx, "running a single cron cycle")
		return service.RunOnce(ctx)
	}
	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}
