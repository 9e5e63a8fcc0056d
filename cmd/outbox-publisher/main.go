package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/phoneshop-backend/pkg/config"
	"github.com/angelmondragon/phoneshop-backend/pkg/db"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
	"github.com/angelmondragon/phoneshop-backend/pkg/metrics"
	"github.com/angelmondragon/phoneshop-backend/pkg/migrate"
	"github.com/angelmondragon/phoneshop-backend/pkg/outbox"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "outbox publisher shut down gracefully")
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
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

	producer, err := newProducer(cfg.Kafka, cfg.Outbox.PublishTimeout)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, producer.Close())
	}()

	service, err := NewService(ServiceParams{
		Logger:       logg,
		DB:           dbClient,
		Repository:   outbox.NewRepository(dbClient.DB()),
		Producer:     producer,
		Metrics:      metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		Topic:        cfg.Kafka.Topic,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		PollInterval: cfg.Outbox.PollInterval,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"topic":   cfg.Kafka.Topic,
		"brokers": brokerList(cfg.Kafka),
	})
	logg.Info(ctx, "starting outbox publisher")
	return service.Run(ctx)
}
