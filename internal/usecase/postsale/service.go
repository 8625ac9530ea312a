package postsale

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"incidencias/internal/domain/incidence"
	domain "incidencias/internal/domain/postsale"
	"incidencias/internal/errs"
	"incidencias/internal/ports"
)

const component = "usecase.postsale"

// IncidenceCreator runs the full incidence create contract. It must join the unit of work carried
// by ctx.
type IncidenceCreator interface {
	CreateFromRequest(ctx context.Context, actor incidence.Actor, req incidence.CreateRequest) (incidence.Incidence, error)
}

type Service struct {
	repo       ports.PostSaleRepository
	housing    ports.HousingDirectory
	uow        ports.UnitOfWork
	incidences IncidenceCreator
	classFor   domain.ClassLookup
	newBatchID func() string
	now        func() time.Time
}

func NewService(
	repo ports.PostSaleRepository,
	housing ports.HousingDirectory,
	uow ports.UnitOfWork,
	incidences IncidenceCreator,
	classFor domain.ClassLookup,
) *Service {
	return &Service{
		repo:       repo,
		housing:    housing,
		uow:        uow,
		incidences: incidences,
		classFor:   classFor,
		newBatchID: uuid.NewString,
		now:        time.Now,
	}
}

type ItemInput struct {
	Category        string
	Description     string
	OK              *bool
	Severity        string
	Comment         string
	CreateIncidence *bool
}

type CreateFormInput struct {
	Actor     incidence.Actor
	HousingID uint64
	Items     []ItemInput
}

type ReviewInput struct {
	Actor   incidence.Actor
	FormID  uint64
	Mode    domain.Mode
	Comment string
}

type ReviewResult struct {
	Form       domain.Form
	Incidences []incidence.Incidence
	BatchID    string
	// AlreadyReviewed is true when the call was a no-op on a revised form.
	AlreadyReviewed bool
}

func (s *Service) checkReady(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("postsale repository is required")
	}
	if s.uow == nil {
		return errors.New("postsale unit of work is required")
	}
	return nil
}

func (i ItemInput) toItem(formID uint64) domain.Item {
	return domain.Item{
		FormID:          formID,
		Category:        i.Category,
		Description:     i.Description,
		OK:              i.OK,
		Severity:        i.Severity,
		Comment:         i.Comment,
		CreateIncidence: i.CreateIncidence,
	}
}
