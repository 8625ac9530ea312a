package ports

import "context"

// Tx is an opaque transaction handle; infrastructure decides the concrete type (*gorm.DB).
type Tx interface{}

// UnitOfWork is a callback-style transaction boundary: an error from fn rolls back, nil commits.
// One incidence row plus the history it produced always go through a single WithTx call.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns nil outside a unit of work.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
