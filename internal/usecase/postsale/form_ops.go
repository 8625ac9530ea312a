package postsale

import (
	"context"

	"incidencias/internal/domain/incidence"
	domain "incidencias/internal/domain/postsale"
	"incidencias/internal/errs"
)

// CreateForm opens a draft checklist for a housing. Beneficiaries may omit the housing.
func (s *Service) CreateForm(ctx context.Context, input CreateFormInput) (domain.Form, error) {
	if err := s.checkReady(ctx); err != nil {
		return domain.Form{}, err
	}
	if s.housing == nil {
		return domain.Form{}, errs.Validation("housing directory is required")
	}

	actor := input.Actor
	if !actor.Role.Valid() {
		return domain.Form{}, errs.PermissionDenied("unknown role %q", actor.Role)
	}

	housingID := input.HousingID
	if housingID == 0 && actor.Role == incidence.RoleBeneficiary {
		resolved, found, err := s.housing.HousingForBeneficiary(ctx, actor.ID)
		if err != nil {
			return domain.Form{}, err
		}
		if found {
			housingID = resolved
		}
	}
	if housingID == 0 {
		return domain.Form{}, errs.Validation("housing is required")
	}

	housing, err := s.housing.GetHousing(ctx, housingID)
	if err != nil {
		return domain.Form{}, err
	}
	if housing.BeneficiaryID == nil {
		return domain.Form{}, errs.Validation("housing %d has no beneficiary", housingID)
	}
	if actor.Role == incidence.RoleBeneficiary && *housing.BeneficiaryID != actor.ID {
		return domain.Form{}, errs.PermissionDenied("housing %d is not assigned to beneficiary %d", housingID, actor.ID)
	}

	form := domain.Form{
		HousingID:     housingID,
		BeneficiaryID: *housing.BeneficiaryID,
		State:         domain.FormDraft,
		CreatedAt:     s.now(),
	}
	for _, input := range input.Items {
		item, err := domain.ValidateItem(input.toItem(0))
		if err != nil {
			return domain.Form{}, err
		}
		form.Items = append(form.Items, item)
	}

	return s.repo.CreateForm(ctx, form)
}

func (s *Service) GetForm(ctx context.Context, actor incidence.Actor, formID uint64) (domain.Form, error) {
	if err := s.checkReady(ctx); err != nil {
		return domain.Form{}, err
	}
	return s.visibleForm(ctx, actor, formID)
}

func (s *Service) AddItem(ctx context.Context, actor incidence.Actor, formID uint64, input ItemInput) (domain.Item, error) {
	if err := s.checkReady(ctx); err != nil {
		return domain.Item{}, err
	}

	var added domain.Item
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		form, err := s.visibleForm(txCtx, actor, formID)
		if err != nil {
			return err
		}
		if err := form.CheckEditable(); err != nil {
			return err
		}
		item, err := domain.ValidateItem(input.toItem(formID))
		if err != nil {
			return err
		}
		added, err = s.repo.AddItem(txCtx, item)
		return err
	})
	if err != nil {
		return domain.Item{}, err
	}
	return added, nil
}

func (s *Service) UpdateItem(ctx context.Context, actor incidence.Actor, formID uint64, itemID uint64, input ItemInput) (domain.Item, error) {
	if err := s.checkReady(ctx); err != nil {
		return domain.Item{}, err
	}

	var updated domain.Item
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		form, err := s.visibleForm(txCtx, actor, formID)
		if err != nil {
			return err
		}
		if err := form.CheckEditable(); err != nil {
			return err
		}
		item, err := domain.ValidateItem(input.toItem(formID))
		if err != nil {
			return err
		}
		item.ID = itemID
		if err := s.repo.UpdateItem(txCtx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return domain.Item{}, err
	}
	return updated, nil
}

// SubmitForm hands the draft over for technician review.
func (s *Service) SubmitForm(ctx context.Context, actor incidence.Actor, formID uint64) (domain.Form, error) {
	if err := s.checkReady(ctx); err != nil {
		return domain.Form{}, err
	}

	var submitted domain.Form
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		form, err := s.visibleForm(txCtx, actor, formID)
		if err != nil {
			return err
		}
		submitted, err = form.Submit(s.now())
		if err != nil {
			return err
		}
		return s.repo.SaveFormState(txCtx, submitted, domain.FormDraft)
	})
	if err != nil {
		return domain.Form{}, err
	}
	return submitted, nil
}

// visibleForm hides other beneficiaries' forms behind NotFound.
func (s *Service) visibleForm(ctx context.Context, actor incidence.Actor, formID uint64) (domain.Form, error) {
	form, err := s.repo.GetForm(ctx, formID)
	if err != nil {
		return domain.Form{}, err
	}
	if actor.Role == incidence.RoleBeneficiary && form.BeneficiaryID != actor.ID {
		return domain.Form{}, errs.NotFound("postsale form %d", formID)
	}
	if !actor.Role.Valid() {
		return domain.Form{}, errs.PermissionDenied("unknown role %q", actor.Role)
	}
	return form, nil
}
