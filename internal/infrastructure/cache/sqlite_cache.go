package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"incidencias/internal/errs"
	"incidencias/internal/infrastructure/persistence/sqlite/model"
	"incidencias/internal/ports"
)

// SQLiteCache stores best-effort values in the kv table. Entries with a ttl expire lazily on read.
// Calls made inside a unit of work use its transaction, so a rolled back write leaves no entry.
type SQLiteCache struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.Cache = (*SQLiteCache)(nil)

func NewSQLiteCache(db *gorm.DB) *SQLiteCache {
	return &SQLiteCache{db: db, now: time.Now}
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (string, bool, error) {
	key, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	var row model.KV
	if err := c.dbFor(ctx).Where("key = ?", key).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "query cache by key")
	}

	if row.ExpiresAt != nil {
		expiresAt, err := time.Parse(time.RFC3339Nano, *row.ExpiresAt)
		if err != nil || !c.now().UTC().Before(expiresAt) {
			_ = c.Delete(ctx, key)
			return "", false, nil
		}
	}
	return row.Value, true, nil
}

// Set upserts key. A zero ttl keeps the value until it is overwritten or deleted.
func (c *SQLiteCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	key, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	now := c.now().UTC()
	row := model.KV{
		Key:       key,
		Value:     value,
		UpdatedAt: now.Format(time.RFC3339Nano),
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl).Format(time.RFC3339Nano)
		row.ExpiresAt = &expiresAt
	}

	if err := c.dbFor(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
			"expires_at": row.ExpiresAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert cache key")
	}
	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	key, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	if err := c.dbFor(ctx).Where("key = ?", key).Delete(&model.KV{}).Error; err != nil {
		return errs.Wrap(err, "delete cache key")
	}
	return nil
}

func (c *SQLiteCache) dbFor(ctx context.Context) *gorm.DB {
	if tx, ok := ports.TxFromContext(ctx).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return c.db.WithContext(ctx)
}

func checkKey(ctx context.Context, key string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errs.Validation("cache key is required")
	}
	return trimmed, nil
}
