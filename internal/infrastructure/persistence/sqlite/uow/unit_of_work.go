package uow

import (
	"context"

	"gorm.io/gorm"

	"incidencias/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork over gorm transactions.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithTx joins an outer unit of work when ctx already carries one, so nested calls commit together.
func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if outer, ok := ports.TxFromContext(ctx).(*gorm.DB); ok && outer != nil {
		return fn(ctx)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
}
