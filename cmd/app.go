package cmd

import (
	"context"
	"io"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/store"
)

// app is what every database-backed command starts from: the resolved
// config, the root logger and an open store.
type app struct {
	cfg    *config.Config
	logs   *logging.Root
	logger logging.Logger
	store  *store.Store
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.NewEnhancedError(
			"Failed to load configuration",
			err,
			errors.ConfigurationError(err.Error(), configPath()),
		)
	}
	return cfg, nil
}

func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logs, err := logging.Setup(level, cfg.Log.Format, cfg.Log.Dir, logOut)
	if err != nil {
		return nil, errors.NewEnhancedError("Failed to set up logging", err, nil)
	}
	logger := logs.WithComponent("folio")

	dsn := logging.SanitizeForLog(cfg.Database.DSN)
	st, err := store.Open(ctx, cfg.Database,
		store.WithLogger(logs.Slog().With("component", "store")),
		store.WithDefaultTracer(),
		store.WithDefaultMeter(),
	)
	if err != nil {
		logger.Error(ctx, err, "Failed to open database", "driver", cfg.Database.Driver, "dsn", dsn)
		_ = logs.Close()
		return nil, errors.NewEnhancedError("Failed to open database", err, errors.DatabaseError(err, dsn))
	}
	logger.Info(ctx, "Database opened", "driver", cfg.Database.Driver, "dsn", dsn, "in_memory", cfg.Database.InMemory)

	return &app{cfg: cfg, logs: logs, logger: logger, store: st}, nil
}

// migrate brings the schema up to date. Any failure is fatal to the caller.
func (a *app) migrate(ctx context.Context) ([]store.Migration, error) {
	perf := logging.StartOperation(a.logger, "migrate")

	applied, err := a.store.Migrate(ctx)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, errors.NewEnhancedError(
			"Failed to migrate database",
			err,
			errors.DatabaseError(err, logging.SanitizeForLog(a.cfg.Database.DSN)),
		)
	}

	perf.End(ctx, "applied", len(applied))
	return applied, nil
}

func (a *app) Close() error {
	storeErr := a.store.Close()
	if err := a.logs.Close(); err != nil {
		return err
	}
	return storeErr
}
