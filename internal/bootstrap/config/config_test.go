package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "app:\n  env: test\ndatabase:\n  driver: sqlite\n  dsn: ':memory:'\nlog:\n  level: debug\n  format: json\nconsole:\n  refresh_interval: 5s\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Name != "incidencias" || cfg.App.Env != "test" {
		t.Fatalf("app config = %#v", cfg.App)
	}
	if cfg.Database.DSN != ":memory:" || cfg.Log.Format != "json" {
		t.Fatalf("config = %#v", cfg)
	}
	if cfg.Console.RefreshInterval != 5*time.Second {
		t.Fatalf("refresh interval = %v", cfg.Console.RefreshInterval)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  dsn: file.sqlite\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("INC_DATABASE_DSN", "override.sqlite")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.DSN != "override.sqlite" {
		t.Fatalf("dsn = %q, want override.sqlite", cfg.Database.DSN)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("Load() expected error for missing explicit file")
	}
}
