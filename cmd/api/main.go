package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/phoneshop-backend/api/controllers"
	"github.com/angelmondragon/phoneshop-backend/api/routes"
	"github.com/angelmondragon/phoneshop-backend/internal/checkout"
	"github.com/angelmondragon/phoneshop-backend/internal/inventory"
	"github.com/angelmondragon/phoneshop-backend/internal/orders"
	"github.com/angelmondragon/phoneshop-backend/internal/payments"
	"github.com/angelmondragon/phoneshop-backend/internal/stats"
	"github.com/angelmondragon/phoneshop-backend/pkg/config"
	"github.com/angelmondragon/phoneshop-backend/pkg/db"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
	"github.com/angelmondragon/phoneshop-backend/pkg/metrics"
	"github.com/angelmondragon/phoneshop-backend/pkg/migrate"
	"github.com/angelmondragon/phoneshop-backend/pkg/outbox"
	"github.com/angelmondragon/phoneshop-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}

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

	readiness := map[string]controllers.Pinger{"database": dbClient}
	var store redis.Store
	if cfg.Redis.Enabled() {
		redisClient, redisErr := redis.New(ctx, cfg.Redis, logg)
		if redisErr != nil {
			return redisErr
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		store = redisClient
		readiness["redis"] = redisClient
	} else {
		logg.Warn(ctx, "redis not configured; replay guard, stats cache and idempotent checkout disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	shopMetrics := metrics.NewShopMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	ordersRepo := orders.NewRepository(dbClient.DB())
	stock := inventory.NewRepository(dbClient.DB())
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	checkoutService, err := checkout.NewService(dbClient, ordersRepo, stock, shopMetrics, checkout.WithEvents(events))
	if err != nil {
		return err
	}
	ordersService, err := orders.NewService(ordersRepo, dbClient, stock, orders.WithEvents(events))
	if err != nil {
		return err
	}
	gateway, err := payments.NewGateway(cfg.VNPay, loc)
	if err != nil {
		return err
	}
	guard, err := payments.NewReplayGuard(store, cfg.Payments.CallbackReplayTTL)
	if err != nil {
		return err
	}
	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:    ordersRepo,
		Tx:      dbClient,
		Gateway: gateway,
		Guard:   guard,
		Metrics: shopMetrics,
		Events:  events,
		Logger:  logg,
	})
	if err != nil {
		return err
	}
	statsService, err := stats.NewService(stats.ServiceParams{
		Repo:     stats.NewRepository(dbClient.DB()),
		Location: loc,
		Store:    store,
		CacheTTL: cfg.Stats.CacheTTL,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			readiness,
			store,
			httpMetrics,
			promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			checkoutService,
			ordersService,
			paymentsService,
			statsService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"driver":    dbClient.Driver(),
		"time_zone": loc.String(),
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
