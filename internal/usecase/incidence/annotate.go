package incidence

import (
	"context"
	"log/slog"

	"incidencias/internal/bootstrap/logging"
	domain "incidencias/internal/domain/incidence"
	"incidencias/internal/errs"
)

func (s *Service) Comment(ctx context.Context, incidenceID uint64, actor domain.Actor, text string) (domain.HistoryEvent, error) {
	return s.annotate(ctx, incidenceID, actor, func(current domain.Incidence) (domain.HistoryEvent, error) {
		return s.machine.Comment(current, actor, text, s.now())
	})
}

// RecordMedia stores a reference to evidence kept in external storage.
func (s *Service) RecordMedia(ctx context.Context, incidenceID uint64, actor domain.Actor, ref string) (domain.HistoryEvent, error) {
	return s.annotate(ctx, incidenceID, actor, func(current domain.Incidence) (domain.HistoryEvent, error) {
		return s.machine.RecordMedia(current, actor, ref, s.now())
	})
}

func (s *Service) annotate(ctx context.Context, incidenceID uint64, actor domain.Actor, build func(domain.Incidence) (domain.HistoryEvent, error)) (domain.HistoryEvent, error) {
	if err := s.checkReady(ctx); err != nil {
		return domain.HistoryEvent{}, err
	}

	var appended domain.HistoryEvent
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetIncidence(txCtx, incidenceID)
		if err != nil {
			return err
		}
		event, err := build(current)
		if err != nil {
			return err
		}
		appended, err = s.repo.AppendHistory(txCtx, event)
		return err
	}); err != nil {
		logging.Warn(s.logContext(ctx, incidenceID, actor), "incidence annotation rejected", slog.Any("err", errs.Loggable(err)))
		return domain.HistoryEvent{}, err
	}

	logging.Info(s.logContext(ctx, incidenceID, actor), "incidence annotated",
		slog.String("event_type", string(appended.Type)),
		slog.Uint64("event_id", appended.EventID),
	)
	return appended, nil
}
