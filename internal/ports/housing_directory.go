package ports

import (
	"context"
	"time"
)

type Housing struct {
	HousingID     uint64
	ProjectID     uint64
	Code          string
	BeneficiaryID *uint64
	DeliveryDate  *time.Time
}

// HousingDirectory answers the ownership and scope questions transitions need. Housing and
// project management live elsewhere; SaveHousing and GrantScope only seed this view.
type HousingDirectory interface {
	GetHousing(ctx context.Context, housingID uint64) (Housing, error)
	GetHousingDeliveryDate(ctx context.Context, housingID uint64) (*time.Time, error)
	HousingForBeneficiary(ctx context.Context, beneficiaryID uint64) (uint64, bool, error)
	HasProjectScope(ctx context.Context, actorID uint64, housingID uint64) (bool, error)
	SaveHousing(ctx context.Context, housing Housing) error
	GrantScope(ctx context.Context, actorID uint64, projectID uint64) error
}
