package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"incidencias/internal/bootstrap/config"
	"incidencias/internal/bootstrap/database"
	"incidencias/internal/bootstrap/logging"
	"incidencias/internal/domain/derivation"
	domain "incidencias/internal/domain/incidence"
	"incidencias/internal/domain/policy"
	"incidencias/internal/domain/sla"
	"incidencias/internal/errs"
	cacheinfra "incidencias/internal/infrastructure/cache"
	sqliterepo "incidencias/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "incidencias/internal/infrastructure/persistence/sqlite/uow"
	"incidencias/internal/ports"
	"incidencias/internal/usecase/incidence"
	"incidencias/internal/usecase/postsale"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewIncidenceRepository,
			fx.As(new(ports.IncidenceRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewHousingRepository,
			fx.As(new(ports.HousingDirectory)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewPostSaleRepository,
			fx.As(new(ports.PostSaleRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideDomain),
	fx.Provide(incidence.NewService),
	fx.Provide(providePostSaleService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB, p *policy.Policy) *App {
	return &App{
		Config: cfg,
		DB:     db,
		Policy: p,
	}
}

type domainResult struct {
	fx.Out

	Policy     *policy.Policy
	Deriver    *derivation.Deriver
	Calculator *sla.Calculator
	Machine    *domain.Machine
}

// provideDomain loads the embedded policy tables once; a broken table fails startup.
func provideDomain(ctx context.Context) (domainResult, error) {
	p, err := policy.Default()
	if err != nil {
		logging.Error(logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")), "policy tables rejected", slog.Any("err", errs.Loggable(err)))
		return domainResult{}, err
	}
	deriver := derivation.NewDeriver(p)
	calculator := sla.NewCalculator(p)
	return domainResult{
		Policy:     p,
		Deriver:    deriver,
		Calculator: calculator,
		Machine:    domain.NewMachine(deriver, calculator),
	}, nil
}

func providePostSaleService(
	repo ports.PostSaleRepository,
	housing ports.HousingDirectory,
	uow ports.UnitOfWork,
	incidences *incidence.Service,
	deriver *derivation.Deriver,
) *postsale.Service {
	return postsale.NewService(repo, housing, uow, incidences, deriver.WarrantyClassFor)
}
