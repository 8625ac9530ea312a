package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/fx"

	"incidencias/internal/bootstrap/config"
	"incidencias/internal/bootstrap/database"
	"incidencias/internal/domain/policy"
	"incidencias/internal/infrastructure/persistence/schema"
	"incidencias/internal/usecase/incidence"
	"incidencias/internal/usecase/postsale"
)

func TestModuleGraphResolves(t *testing.T) {
	err := fx.ValidateApp(
		Module,
		fx.Provide(func() context.Context { return context.Background() }),
		fx.Provide(
			fx.Annotate(
				func() string { return "configs/config.yaml" },
				fx.ResultTags(`name:"configFile"`),
			),
		),
		fx.Invoke(func(*App, *incidence.Service, *postsale.Service) {}),
	)
	if err != nil {
		t.Fatalf("ValidateApp() error = %v", err)
	}
}

func TestInitSchemaStampsVersion(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "nested", "incidencias.sqlite"),
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	p, err := policy.Default()
	if err != nil {
		t.Fatalf("policy.Default() error = %v", err)
	}
	app := &App{DB: db, Policy: p}
	t.Cleanup(func() { _ = app.Close(ctx) })

	if err := app.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if err := app.InitSchema(ctx); err != nil {
		t.Fatalf("second InitSchema() error = %v", err)
	}

	version, err := schema.CurrentVersion(ctx, db)
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}
	if version != schema.Version {
		t.Fatalf("CurrentVersion() = %q, want %q", version, schema.Version)
	}
	for _, table := range []string{"incidences", "history_events", "housings", "project_scopes", "postsale_forms", "postsale_items", "kv"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("table %s missing after InitSchema", table)
		}
	}
}

func TestInitSchemaRequiresContext(t *testing.T) {
	app := &App{}
	if err := app.InitSchema(nil); err == nil {
		t.Fatalf("InitSchema(nil) error = nil, want error")
	}
}
