package migrate

import (
	"context"
	"fmt"

	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/db"
	"github.com/horologe/storefront-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on API start when running in
// dev with HOROLOGE_AUTO_MIGRATE. The schema is postgres-only, so sqlite
// databases are left alone.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if cfg.DB.Driver == db.DriverSQLite || cfg.FeatureFlags.UseSQLite {
		logg.Warn(ctx, "auto-migrate skipped for sqlite")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	m, err := New(sqlDB, "")
	if err != nil {
		return err
	}
	applied, err := m.Up(ctx)
	Log(ctx, logg, applied)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", len(applied)), "auto-migrate finished")
	return nil
}

// Log writes one line per applied or rolled back migration.
func Log(ctx context.Context, logg *logger.Logger, results []Result) {
	if logg == nil {
		return
	}
	for _, r := range results {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     r.Version,
			"file":        r.File,
			"direction":   r.Direction,
			"duration_ms": r.Took.Milliseconds(),
		}), "migration applied")
	}
}
