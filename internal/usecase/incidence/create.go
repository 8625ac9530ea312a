package incidence

import (
	"context"
	"log/slog"
	"strings"

	"incidencias/internal/bootstrap/logging"
	domain "incidencias/internal/domain/incidence"
	"incidencias/internal/domain/policy"
	"incidencias/internal/errs"
)

// Create reports a new incidence. Beneficiaries may omit the housing; it is resolved from their
// assignment.
func (s *Service) Create(ctx context.Context, input CreateInput) (domain.Incidence, error) {
	req := domain.CreateRequest{
		HousingID:   input.HousingID,
		Category:    input.Category,
		Description: input.Description,
	}
	if raw := strings.TrimSpace(input.WarrantyClass); raw != "" {
		class := policy.WarrantyClass(strings.ToLower(raw))
		req.WarrantyClass = &class
	}
	return s.CreateFromRequest(ctx, input.Actor, req)
}

// CreateFromRequest runs the full create contract for a prepared request. It joins the caller's
// unit of work when ctx carries one.
func (s *Service) CreateFromRequest(ctx context.Context, actor domain.Actor, req domain.CreateRequest) (domain.Incidence, error) {
	if err := s.checkReady(ctx); err != nil {
		return domain.Incidence{}, err
	}
	if s.housing == nil {
		return domain.Incidence{}, errs.Validation("housing directory is required")
	}

	var created domain.Incidence
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if req.HousingID == 0 && actor.Role == domain.RoleBeneficiary {
			housingID, found, err := s.housing.HousingForBeneficiary(txCtx, actor.ID)
			if err != nil {
				return err
			}
			if found {
				req.HousingID = housingID
			}
		}

		if req.HousingID != 0 {
			housing, err := s.housing.GetHousing(txCtx, req.HousingID)
			if err != nil {
				return err
			}
			if actor.Role == domain.RoleBeneficiary && (housing.BeneficiaryID == nil || *housing.BeneficiaryID != actor.ID) {
				return errs.PermissionDenied("housing %d is not assigned to beneficiary %d", req.HousingID, actor.ID)
			}
			req.DeliveryDate = housing.DeliveryDate
		}

		record, events, err := s.machine.Create(req, actor, s.now())
		if err != nil {
			return err
		}

		record, err = s.repo.CreateIncidence(txCtx, record)
		if err != nil {
			return err
		}
		for _, event := range events {
			event.IncidenceID = record.ID
			if _, err := s.repo.AppendHistory(txCtx, event); err != nil {
				return err
			}
		}
		created = record
		return nil
	}); err != nil {
		logging.Warn(s.logContext(ctx, 0, actor), "incidence create rejected", slog.Any("err", errs.Loggable(err)))
		return domain.Incidence{}, err
	}

	logging.Info(
		s.logContext(ctx, created.ID, actor),
		"incidence created",
		slog.String("priority", string(created.PriorityFinal)),
		slog.String("source", string(created.Source)),
		slog.Time("closure_deadline", created.ClosureDeadline),
	)
	return created, nil
}
