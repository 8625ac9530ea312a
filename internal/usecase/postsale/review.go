package postsale

import (
	"context"
	"errors"
	"log/slog"

	"incidencias/internal/bootstrap/logging"
	"incidencias/internal/domain/incidence"
	domain "incidencias/internal/domain/postsale"
	"incidencias/internal/errs"
)

// Review closes the technician audit of a submitted form. Problem items become incidences, one
// unit of work per incidence, created in item order. A failure stops the batch and leaves the
// form enviada with the already created incidences linked, so calling Review again resumes it
// in the mode pinned by the first attempt. Reviewing an already revised form returns it
// unchanged, including when a concurrent review finishes first.
func (s *Service) Review(ctx context.Context, input ReviewInput) (ReviewResult, error) {
	if err := s.checkReady(ctx); err != nil {
		return ReviewResult{}, err
	}
	reviewer := input.Actor
	if !reviewer.Role.Staff() {
		return ReviewResult{}, errs.PermissionDenied("role %s cannot review postsale forms", reviewer.Role)
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", component),
		slog.Uint64("form_id", input.FormID),
		slog.Uint64("reviewer_id", reviewer.ID),
	)

	form, err := s.repo.GetForm(ctx, input.FormID)
	if err != nil {
		return ReviewResult{}, err
	}
	alreadyRevised, err := form.CheckReviewable()
	if err != nil {
		return ReviewResult{}, err
	}
	if alreadyRevised {
		logging.Info(logCtx, "postsale form already reviewed", slog.String("state", string(form.State)))
		return ReviewResult{Form: form, AlreadyReviewed: true}, nil
	}

	mode, err := form.ResolveMode(input.Mode)
	if err != nil {
		return ReviewResult{}, err
	}
	drafts, err := domain.Plan(form.Items, mode, s.classFor)
	if err != nil {
		return ReviewResult{}, err
	}
	hadProblems := len(domain.ProblemItems(form.Items)) > 0

	result := ReviewResult{}
	if len(drafts) > 0 {
		if s.incidences == nil {
			return ReviewResult{}, errs.Validation("incidence creator is required")
		}
		if err := s.repo.PinReviewMode(ctx, form.ID, mode); err != nil {
			return s.settleConflict(ctx, logCtx, form, ReviewResult{}, err)
		}
		form.ReviewMode = mode
		result.BatchID = s.newBatchID()
		logCtx = logging.WithAttrs(logCtx, slog.String("review_batch_id", result.BatchID), slog.String("mode", string(mode)))
	}

	for i, draft := range drafts {
		created, err := s.createFromDraft(ctx, form, reviewer, draft, mode, result.BatchID)
		if err != nil {
			logging.Error(logCtx, "postsale incidence creation failed",
				slog.Int("draft", i+1),
				slog.Int("drafts", len(drafts)),
				slog.Int("created", len(result.Incidences)),
				slog.Any("err", errs.Loggable(err)),
			)
			result.Form = form
			return s.settleConflict(ctx, logCtx, form, result, errs.Wrapf(err, "create incidence %d of %d for form %d", i+1, len(drafts), form.ID))
		}
		result.Incidences = append(result.Incidences, created)
	}

	reviewed := form.Reviewed(reviewer.ID, input.Comment, mode, hadProblems, s.now())
	if err := s.repo.SaveFormState(ctx, reviewed, domain.FormSubmitted); err != nil {
		result.Form = form
		return s.settleConflict(ctx, logCtx, form, result, err)
	}
	result.Form = reviewed

	logging.Info(logCtx, "postsale form reviewed",
		slog.String("state", string(reviewed.State)),
		slog.Int("incidences_created", len(result.Incidences)),
	)
	return result, nil
}

func (s *Service) createFromDraft(ctx context.Context, form domain.Form, reviewer incidence.Actor, draft domain.Draft, mode domain.Mode, batchID string) (incidence.Incidence, error) {
	technicianID := reviewer.ID
	req := incidence.CreateRequest{
		HousingID:     form.HousingID,
		ReporterID:    form.BeneficiaryID,
		Category:      draft.Category,
		Description:   draft.Description,
		Source:        incidence.SourcePostSale,
		WarrantyClass: draft.WarrantyClass,
		TechnicianID:  &technicianID,
		Origin: &incidence.PostSaleOrigin{
			FormID:  form.ID,
			BatchID: batchID,
			Mode:    string(mode),
			ItemIDs: draft.ItemIDs,
		},
	}

	var created incidence.Incidence
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.incidences.CreateFromRequest(txCtx, reviewer, req)
		if err != nil {
			return err
		}
		return s.repo.LinkItems(txCtx, draft.ItemIDs, created.ID)
	})
	return created, err
}

// settleConflict turns a lost race into the winner's outcome. When a guarded write failed because
// another review already revised the form, the revised form is returned as AlreadyReviewed
// along with whatever this call created before losing. Other failures are returned as is.
func (s *Service) settleConflict(ctx context.Context, logCtx context.Context, form domain.Form, partial ReviewResult, cause error) (ReviewResult, error) {
	if !errors.Is(cause, errs.ErrInvalidTransition) {
		return partial, cause
	}
	current, err := s.repo.GetForm(ctx, form.ID)
	if err != nil || !current.State.Revised() {
		return partial, cause
	}
	logging.Info(logCtx, "postsale form reviewed concurrently", slog.String("state", string(current.State)))
	partial.Form = current
	partial.AlreadyReviewed = true
	return partial, nil
}
