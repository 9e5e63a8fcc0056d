package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/phoneshop-backend/pkg/config"
	"github.com/angelmondragon/phoneshop-backend/pkg/db"
	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
)

// LedgerModels lists the tables owned by the checkout core.
func LedgerModels() []any {
	return []any{
		&models.Product{},
		&models.ProductVariant{},
		&models.Order{},
		&models.OrderLine{},
		&models.PaymentCallback{},
		&models.OutboxEvent{},
	}
}

// MaybeRunDev brings the schema up to date when the app is running in dev mode and
// the feature flag is enabled. SQLite databases are created from the models because
// the SQL migrations target Postgres.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	meta := map[string]any{"env": cfg.App.Env, "source": "embedded", "driver": client.Driver()}
	ctx = logg.WithFields(ctx, meta)

	if client.Driver() == db.DriverSQLite {
		logg.Info(ctx, "auto-migrating sqlite schema from models")
		if err := client.DB().WithContext(ctx).AutoMigrate(LedgerModels()...); err != nil {
			return fmt.Errorf("sqlite automigrate: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running Goose migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, Dialect(client.Driver()), Migrations(), "up", nil); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}
