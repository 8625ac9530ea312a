package incidence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"incidencias/internal/bootstrap/logging"
	domain "incidencias/internal/domain/incidence"
	"incidencias/internal/domain/sla"
	"incidencias/internal/errs"
	"incidencias/internal/ports"
)

const component = "usecase.incidence"

type Service struct {
	repo    ports.IncidenceRepository
	housing ports.HousingDirectory
	uow     ports.UnitOfWork
	cache   ports.Cache
	machine *domain.Machine
	sla     *sla.Calculator
	now     func() time.Time
}

// NewService wires incidence usecases. cache only stores feed cursors and may be nil.
func NewService(
	repo ports.IncidenceRepository,
	housing ports.HousingDirectory,
	uow ports.UnitOfWork,
	cache ports.Cache,
	machine *domain.Machine,
	calculator *sla.Calculator,
) *Service {
	return &Service{
		repo:    repo,
		housing: housing,
		uow:     uow,
		cache:   cache,
		machine: machine,
		sla:     calculator,
		now:     time.Now,
	}
}

type CreateInput struct {
	Actor         domain.Actor
	HousingID     uint64
	Category      string
	Description   string
	WarrantyClass string
}

type TransitionInput struct {
	IncidenceID uint64
	Actor       domain.Actor
	Transition  domain.Transition
}

type TransitionResult struct {
	Incidence domain.Incidence
	Event     domain.HistoryEvent
}

type Detail struct {
	Incidence domain.Incidence
	History   []domain.HistoryEvent
	SLA       *sla.Status
}

type FeedResult struct {
	Events      []domain.HistoryEvent
	CursorAfter uint64
}

func (s *Service) checkReady(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("incidence repository is required")
	}
	if s.uow == nil {
		return errors.New("incidence unit of work is required")
	}
	return nil
}

func (s *Service) logContext(ctx context.Context, incidenceID uint64, actor domain.Actor) context.Context {
	return logging.WithAttrs(ctx,
		slog.String("component", component),
		slog.Uint64("incidence_id", incidenceID),
		slog.Uint64("actor_id", actor.ID),
		slog.String("actor_role", string(actor.Role)),
	)
}

func cacheFeedCursorKey(consumer string) string {
	return "history_cursor:" + consumer
}
