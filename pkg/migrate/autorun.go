package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/pkg/config"
	"github.com/angelmondragon/dukapay-backend/pkg/db"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
)

// MaybeRunDev prepares the schema for local runs. SQLite always syncs from the
// GORM models; Postgres applies the embedded goose migrations only in dev with
// DUKAPAY_AUTO_MIGRATE set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg.DB.Driver == config.DriverSQLite {
		logg.Info(logg.WithField(ctx, "driver", config.DriverSQLite), "syncing sqlite schema from models")
		return AutoMigrateModels(client.DB())
	}
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewPostgresRunner(sqlDB)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied_versions", applied), "dev migrations applied")
	return nil
}

// AutoMigrateModels creates or updates tables straight from the GORM models.
func AutoMigrateModels(conn *gorm.DB) error {
	if err := conn.AutoMigrate(models.Schema()...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}
	return nil
}
