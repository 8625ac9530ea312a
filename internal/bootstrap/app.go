package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"gorm.io/gorm"

	"incidencias/internal/bootstrap/config"
	"incidencias/internal/bootstrap/database"
	"incidencias/internal/bootstrap/logging"
	"incidencias/internal/domain/policy"
	"incidencias/internal/errs"
	"incidencias/internal/infrastructure/persistence/schema"
	"incidencias/internal/infrastructure/persistence/sqlite/model"
)

type App struct {
	Config config.Config
	DB     *gorm.DB
	Policy *policy.Policy
}

func New(ctx context.Context, configFile string) (*App, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "loading application config", slog.String("config_file", configFile))

	cfg, err := config.Load(logCtx, configFile)
	if err != nil {
		return nil, errs.Wrap(err, "load config")
	}

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, errs.Wrap(err, "open database")
	}

	p, err := policy.Default()
	if err != nil {
		return nil, errs.Wrap(err, "load policy tables")
	}

	logging.Info(logCtx, "application bootstrap completed", slog.String("database_driver", cfg.Database.Driver))

	return &App{
		Config: cfg,
		DB:     db,
		Policy: p,
	}, nil
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	stamp := map[string]string{}
	if a.Policy != nil {
		stamp["policy_version"] = strconv.Itoa(a.Policy.Version())
		stamp["policy_categories"] = strconv.Itoa(a.Policy.Categories())
	}
	if err := schema.Stamp(ctx, a.DB, stamp); err != nil {
		return errs.Wrap(err, "stamp schema version")
	}

	logging.Info(logCtx, "schema migration completed", slog.Int("tables", len(model.All())), slog.String("schema_version", schema.Version))
	return nil
}

func (a *App) Close(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	sqlDB, err := a.DB.DB()
	if err != nil {
		return errs.Wrap(err, "get sql db")
	}

	if err := sqlDB.Close(); err != nil {
		return errs.Wrap(err, "close sql db")
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.app")), "database connection closed")
	return nil
}
