package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"incidencias/internal/errs"
	"incidencias/internal/ports"
)

const dateLayout = "2006-01-02"

// dbFromContext prefers the transaction carried by a unit of work.
func dbFromContext(ctx context.Context, db *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// withTx runs fn inside the caller's transaction, or opens one when there is none.
func withTx(ctx context.Context, db *gorm.DB, fn func(*gorm.DB) error) error {
	if ports.TxFromContext(ctx) != nil {
		tx, err := dbFromContext(ctx, db)
		if err != nil {
			return err
		}
		return fn(tx)
	}
	return db.WithContext(ctx).Transaction(fn)
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, errs.Wrapf(err, "parse timestamp %q", raw)
	}
	return t, nil
}

func parseTimePtr(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := parseTime(*raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(dateLayout)
	return &s
}

func parseDatePtr(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return nil, errs.Wrapf(err, "parse date %q", *raw)
	}
	return &t, nil
}
