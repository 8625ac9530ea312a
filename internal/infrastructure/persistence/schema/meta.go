// Package schema records which schema revision a database was migrated to.
package schema

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"incidencias/internal/errs"
)

// Version is bumped whenever model.All changes shape.
const Version = "3"

const versionKey = "schema_version"

type Meta struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Key       string    `gorm:"column:key;type:text;uniqueIndex;not null"`
	Value     string    `gorm:"column:value;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (Meta) TableName() string {
	return "schema_meta"
}

// Stamp migrates the meta table and records Version plus any extra key/value pairs.
func Stamp(ctx context.Context, db *gorm.DB, extra map[string]string) error {
	if db == nil {
		return errs.Validation("database is required")
	}
	tx := db.WithContext(ctx)
	if err := tx.AutoMigrate(&Meta{}); err != nil {
		return errs.Wrap(err, "migrate schema_meta")
	}

	values := map[string]string{versionKey: Version}
	for key, value := range extra {
		values[key] = value
	}
	for key, value := range values {
		row := Meta{Key: key, Value: value}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return errs.Wrapf(err, "stamp schema_meta %s", key)
		}
	}
	return nil
}

// CurrentVersion returns the stamped revision, or "" for an unstamped database.
func CurrentVersion(ctx context.Context, db *gorm.DB) (string, error) {
	if db == nil {
		return "", errs.Validation("database is required")
	}
	var row Meta
	result := db.WithContext(ctx).Where("key = ?", versionKey).Limit(1).Find(&row)
	if result.Error != nil {
		return "", errs.Wrap(result.Error, "read schema_version")
	}
	if result.RowsAffected == 0 {
		return "", nil
	}
	return row.Value, nil
}
