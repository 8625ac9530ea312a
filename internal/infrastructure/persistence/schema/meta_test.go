package schema

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "meta.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestCurrentVersionBeforeStamp(t *testing.T) {
	db := openTestDB(t)
	if err := db.AutoMigrate(&Meta{}); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	got, err := CurrentVersion(context.Background(), db)
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}
	if got != "" {
		t.Fatalf("CurrentVersion() = %q, want empty", got)
	}
}

func TestStampIsRepeatable(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Stamp(ctx, db, map[string]string{"policy_categories": "70"}); err != nil {
		t.Fatalf("Stamp() error = %v", err)
	}
	if err := Stamp(ctx, db, map[string]string{"policy_categories": "71"}); err != nil {
		t.Fatalf("second Stamp() error = %v", err)
	}

	got, err := CurrentVersion(ctx, db)
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}
	if got != Version {
		t.Fatalf("CurrentVersion() = %q, want %q", got, Version)
	}

	var rows []Meta
	if err := db.Order("key").Find(&rows).Error; err != nil {
		t.Fatalf("list meta: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].Key != "policy_categories" || rows[0].Value != "71" {
		t.Fatalf("rows[0] = %+v, want policy_categories=71", rows[0])
	}
}

func TestStampRequiresDB(t *testing.T) {
	if err := Stamp(context.Background(), nil, nil); err == nil {
		t.Fatalf("Stamp(nil) error = nil, want error")
	}
}
