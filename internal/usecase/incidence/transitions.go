package incidence

import (
	"context"
	"log/slog"

	"incidencias/internal/bootstrap/logging"
	domain "incidencias/internal/domain/incidence"
	"incidencias/internal/errs"
)

// Apply fetches the incidence, runs the transition and stores the new row together with its
// history event in one unit of work.
func (s *Service) Apply(ctx context.Context, input TransitionInput) (TransitionResult, error) {
	if err := s.checkReady(ctx); err != nil {
		return TransitionResult{}, err
	}
	if input.Transition == nil {
		return TransitionResult{}, errs.Validation("transition is required")
	}

	logCtx := logging.WithAttrs(s.logContext(ctx, input.IncidenceID, input.Actor), slog.String("transition", input.Transition.Name()))

	var result TransitionResult
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetIncidence(txCtx, input.IncidenceID)
		if err != nil {
			return err
		}

		access, err := s.accessFor(txCtx, input.Actor, current)
		if err != nil {
			return err
		}

		next, event, err := s.machine.Apply(current, input.Transition, input.Actor, access, s.now())
		if err != nil {
			return err
		}

		if next, err = s.repo.PutIncidence(txCtx, next); err != nil {
			return err
		}
		if event, err = s.repo.AppendHistory(txCtx, event); err != nil {
			return err
		}
		result = TransitionResult{Incidence: next, Event: event}
		return nil
	}); err != nil {
		logging.Warn(logCtx, "incidence transition rejected", slog.Any("err", errs.Loggable(err)))
		return TransitionResult{}, err
	}

	logging.Info(logCtx, "incidence transition applied",
		slog.String("previous_state", string(*result.Event.PreviousState)),
		slog.String("new_state", string(result.Incidence.State)),
		slog.Uint64("event_id", result.Event.EventID),
	)
	return result, nil
}

func (s *Service) Assign(ctx context.Context, incidenceID uint64, actor domain.Actor, technicianID uint64, comment string) (TransitionResult, error) {
	return s.Apply(ctx, TransitionInput{IncidenceID: incidenceID, Actor: actor, Transition: domain.Assign{TechnicianID: technicianID, Comment: comment}})
}

func (s *Service) ChangeState(ctx context.Context, incidenceID uint64, actor domain.Actor, target domain.State, comment string) (TransitionResult, error) {
	return s.Apply(ctx, TransitionInput{IncidenceID: incidenceID, Actor: actor, Transition: domain.ChangeState{Target: target, Comment: comment}})
}

func (s *Service) Close(ctx context.Context, incidenceID uint64, actor domain.Actor, conforme bool, comment string) (TransitionResult, error) {
	return s.Apply(ctx, TransitionInput{IncidenceID: incidenceID, Actor: actor, Transition: domain.Close{Conforme: conforme, Comment: comment}})
}

func (s *Service) ValidateResolution(ctx context.Context, incidenceID uint64, actor domain.Actor, conforme bool, comment string) (TransitionResult, error) {
	return s.Apply(ctx, TransitionInput{IncidenceID: incidenceID, Actor: actor, Transition: domain.BeneficiaryValidation{Conforme: conforme, Comment: comment}})
}

func (s *Service) Discard(ctx context.Context, incidenceID uint64, actor domain.Actor, comment string) (TransitionResult, error) {
	return s.Apply(ctx, TransitionInput{IncidenceID: incidenceID, Actor: actor, Transition: domain.Discard{Comment: comment}})
}

func (s *Service) accessFor(ctx context.Context, actor domain.Actor, current domain.Incidence) (domain.Access, error) {
	if s.housing == nil || !actor.Role.Staff() {
		return domain.Access{}, nil
	}
	scoped, err := s.housing.HasProjectScope(ctx, actor.ID, current.HousingID)
	if err != nil {
		return domain.Access{}, err
	}
	return domain.Access{HasProjectScope: scoped}, nil
}
