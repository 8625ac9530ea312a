package postsale

import (
	"strings"
	"time"

	"incidencias/internal/errs"
)

type FormState string

const (
	FormDraft            FormState = "borrador"
	FormSubmitted        FormState = "enviada"
	FormReviewedOK       FormState = "revisado_correcto"
	FormReviewedProblems FormState = "revisado_con_problemas"
)

func (s FormState) Revised() bool {
	return s == FormReviewedOK || s == FormReviewedProblems
}

type Form struct {
	ID            uint64
	HousingID     uint64
	BeneficiaryID uint64
	State         FormState
	Items         []Item

	CreatedAt     time.Time
	SubmittedAt   *time.Time
	ReviewedAt    *time.Time
	ReviewerID    *uint64
	ReviewComment *string
	ReviewMode    Mode
}

type Item struct {
	ID          uint64
	FormID      uint64
	Category    string
	Description string
	OK          *bool
	Severity    string
	Comment     string
	// CreateIncidence nil counts as true.
	CreateIncidence *bool
	IncidenceID     *uint64
}

// Problem reports whether the item should spawn an incidence on review.
func (i Item) Problem() bool {
	okTrue := i.OK != nil && *i.OK
	optedOut := i.CreateIncidence != nil && !*i.CreateIncidence
	return !okTrue && !optedOut
}

func ProblemItems(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Problem() {
			out = append(out, item)
		}
	}
	return out
}

// ValidateItem normalizes free text fields and rejects items without category or description.
func ValidateItem(item Item) (Item, error) {
	item.Category = strings.TrimSpace(item.Category)
	item.Description = strings.TrimSpace(item.Description)
	item.Severity = strings.TrimSpace(item.Severity)
	item.Comment = strings.TrimSpace(item.Comment)
	if item.Category == "" {
		return Item{}, errs.Validation("item category is required")
	}
	if item.Description == "" {
		return Item{}, errs.Validation("item description is required")
	}
	return item, nil
}

func (f Form) CheckEditable() error {
	if f.State != FormDraft {
		return errs.InvalidTransition("form %d is %s; items can only change while %s", f.ID, f.State, FormDraft)
	}
	return nil
}

// Submit moves a draft to enviada. It happens exactly once.
func (f Form) Submit(now time.Time) (Form, error) {
	if err := f.CheckEditable(); err != nil {
		return Form{}, err
	}
	if len(f.Items) == 0 {
		return Form{}, errs.Validation("form %d has no items", f.ID)
	}
	next := f
	next.State = FormSubmitted
	at := now
	next.SubmittedAt = &at
	return next, nil
}

// CheckReviewable returns alreadyRevised=true for forms whose review already happened.
func (f Form) CheckReviewable() (alreadyRevised bool, err error) {
	switch {
	case f.State.Revised():
		return true, nil
	case f.State == FormSubmitted:
		return false, nil
	default:
		return false, errs.InvalidTransition("form %d is %s; only %s forms can be reviewed", f.ID, f.State, FormSubmitted)
	}
}

// ResolveMode picks the mode a review runs in. A form that already has a pinned mode keeps it,
// and a form with items already linked by an unpinned review can only continue individually.
// An empty request means the pinned mode, or individual when none is pinned.
func (f Form) ResolveMode(requested Mode) (Mode, error) {
	if requested != "" && !requested.Valid() {
		return "", errs.Validation("unknown review mode %q", requested)
	}
	if f.ReviewMode != "" {
		if requested != "" && requested != f.ReviewMode {
			return "", errs.Validation("form %d review started in mode %s, cannot resume as %s", f.ID, f.ReviewMode, requested)
		}
		return f.ReviewMode, nil
	}
	if requested == "" {
		return ModeIndividual, nil
	}
	if requested == ModeAggregated {
		for _, item := range ProblemItems(f.Items) {
			if item.IncidenceID != nil {
				return "", errs.Validation("form %d already has individually linked items, cannot resume as %s", f.ID, requested)
			}
		}
	}
	return requested, nil
}

// Reviewed stamps the terminal review state.
func (f Form) Reviewed(reviewerID uint64, comment string, mode Mode, hadProblems bool, now time.Time) Form {
	next := f
	next.State = FormReviewedOK
	if hadProblems {
		next.State = FormReviewedProblems
		next.ReviewMode = mode
	}
	at := now
	next.ReviewedAt = &at
	reviewer := reviewerID
	next.ReviewerID = &reviewer
	if comment = strings.TrimSpace(comment); comment != "" {
		next.ReviewComment = &comment
	}
	return next
}
