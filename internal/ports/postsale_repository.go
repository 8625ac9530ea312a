package ports

import (
	"context"

	"incidencias/internal/domain/postsale"
)

type PostSaleRepository interface {
	CreateForm(ctx context.Context, form postsale.Form) (postsale.Form, error)
	// GetForm loads the form with its items in item order.
	GetForm(ctx context.Context, formID uint64) (postsale.Form, error)
	// SaveFormState writes the lifecycle columns only while the stored state equals from.
	SaveFormState(ctx context.Context, form postsale.Form, from postsale.FormState) error
	PinReviewMode(ctx context.Context, formID uint64, mode postsale.Mode) error
	AddItem(ctx context.Context, item postsale.Item) (postsale.Item, error)
	UpdateItem(ctx context.Context, item postsale.Item) error
	// LinkItems fails with an invalid transition when any item is already linked.
	LinkItems(ctx context.Context, itemIDs []uint64, incidenceID uint64) error
}
