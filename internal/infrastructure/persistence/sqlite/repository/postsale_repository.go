package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"incidencias/internal/domain/postsale"
	"incidencias/internal/errs"
	"incidencias/internal/infrastructure/persistence/sqlite/model"
	"incidencias/internal/ports"
)

type PostSaleRepository struct {
	db *gorm.DB
}

var _ ports.PostSaleRepository = (*PostSaleRepository)(nil)

func NewPostSaleRepository(db *gorm.DB) *PostSaleRepository {
	return &PostSaleRepository{db: db}
}

func (r *PostSaleRepository) CreateForm(ctx context.Context, form postsale.Form) (postsale.Form, error) {
	var created postsale.Form
	err := withTx(ctx, r.db, func(tx *gorm.DB) error {
		row := toFormRow(form)
		row.FormID = 0
		if err := tx.Create(&row).Error; err != nil {
			return errs.Wrap(err, "insert postsale form")
		}

		created = form
		created.ID = row.FormID
		created.Items = make([]postsale.Item, 0, len(form.Items))
		for _, item := range form.Items {
			itemRow := toItemRow(item)
			itemRow.ItemID = 0
			itemRow.FormID = row.FormID
			if err := tx.Create(&itemRow).Error; err != nil {
				return errs.Wrap(err, "insert postsale item")
			}
			created.Items = append(created.Items, mapItem(itemRow))
		}
		return nil
	})
	if err != nil {
		return postsale.Form{}, err
	}
	return created, nil
}

func (r *PostSaleRepository) GetForm(ctx context.Context, formID uint64) (postsale.Form, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return postsale.Form{}, err
	}

	var row model.PostSaleForm
	if err := db.Where("form_id = ?", formID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return postsale.Form{}, errs.NotFound("postsale form %d", formID)
		}
		return postsale.Form{}, errs.Wrap(err, "query postsale form")
	}

	var itemRows []model.PostSaleItem
	if err := db.Where("form_id = ?", formID).Order("item_id asc").Find(&itemRows).Error; err != nil {
		return postsale.Form{}, errs.Wrap(err, "query postsale items")
	}

	form, err := mapForm(row)
	if err != nil {
		return postsale.Form{}, err
	}
	form.Items = make([]postsale.Item, 0, len(itemRows))
	for _, itemRow := range itemRows {
		form.Items = append(form.Items, mapItem(itemRow))
	}
	return form, nil
}

// SaveFormState persists the lifecycle columns when the stored form is still in state from;
// items are written through their own methods.
func (r *PostSaleRepository) SaveFormState(ctx context.Context, form postsale.Form, from postsale.FormState) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := toFormRow(form)
	result := db.Model(&model.PostSaleForm{}).
		Where("form_id = ? AND state = ?", form.ID, string(from)).
		Updates(map[string]any{
			"state":          row.State,
			"submitted_at":   row.SubmittedAt,
			"reviewed_at":    row.ReviewedAt,
			"reviewer_id":    row.ReviewerID,
			"review_comment": row.ReviewComment,
			"review_mode":    row.ReviewMode,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update postsale form")
	}
	if result.RowsAffected == 0 {
		return formConflict(db, form.ID, from, "")
	}
	return nil
}

// PinReviewMode records the mode of a review in progress. A submitted form keeps the first
// mode pinned on it; asking for another one fails with a validation error.
func (r *PostSaleRepository) PinReviewMode(ctx context.Context, formID uint64, mode postsale.Mode) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.PostSaleForm{}).
		Where("form_id = ? AND state = ? AND (review_mode = '' OR review_mode = ?)", formID, string(postsale.FormSubmitted), string(mode)).
		Update("review_mode", string(mode))
	if result.Error != nil {
		return errs.Wrap(result.Error, "pin postsale review mode")
	}
	if result.RowsAffected == 0 {
		return formConflict(db, formID, postsale.FormSubmitted, mode)
	}
	return nil
}

// formConflict explains why a guarded form update matched no row.
func formConflict(db *gorm.DB, formID uint64, want postsale.FormState, mode postsale.Mode) error {
	var row model.PostSaleForm
	if err := db.Select("form_id", "state", "review_mode").Where("form_id = ?", formID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("postsale form %d", formID)
		}
		return errs.Wrap(err, "query postsale form")
	}
	if row.State != string(want) {
		return errs.InvalidTransition("form %d is %s, not %s", formID, row.State, want)
	}
	if mode != "" && row.ReviewMode != string(mode) {
		return errs.Validation("form %d is being reviewed in mode %s, not %s", formID, row.ReviewMode, mode)
	}
	return errs.InvalidTransition("form %d changed concurrently", formID)
}

func (r *PostSaleRepository) AddItem(ctx context.Context, item postsale.Item) (postsale.Item, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return postsale.Item{}, err
	}

	row := toItemRow(item)
	row.ItemID = 0
	if err := db.Create(&row).Error; err != nil {
		return postsale.Item{}, errs.Wrap(err, "insert postsale item")
	}
	return mapItem(row), nil
}

func (r *PostSaleRepository) UpdateItem(ctx context.Context, item postsale.Item) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.PostSaleItem{}).
		Where("item_id = ? AND form_id = ?", item.ID, item.FormID).
		Updates(map[string]any{
			"category":         item.Category,
			"description":      item.Description,
			"ok":               item.OK,
			"severity":         item.Severity,
			"comment":          item.Comment,
			"create_incidence": item.CreateIncidence,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update postsale item")
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("item %d of form %d", item.ID, item.FormID)
	}
	return nil
}

// LinkItems points items at their generated incidence. Every item must still be unlinked,
// otherwise nothing is written and the call fails with an invalid transition.
func (r *PostSaleRepository) LinkItems(ctx context.Context, itemIDs []uint64, incidenceID uint64) error {
	if len(itemIDs) == 0 {
		return nil
	}
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.PostSaleItem{}).
		Where("item_id IN ? AND incidence_id IS NULL", itemIDs).
		Update("incidence_id", incidenceID)
	if result.Error != nil {
		return errs.Wrap(result.Error, "link postsale items")
	}
	if result.RowsAffected != int64(len(itemIDs)) {
		return errs.InvalidTransition("items %v already linked to an incidence", itemIDs)
	}
	return nil
}

func toFormRow(form postsale.Form) model.PostSaleForm {
	return model.PostSaleForm{
		FormID:        form.ID,
		HousingID:     form.HousingID,
		BeneficiaryID: form.BeneficiaryID,
		State:         string(form.State),
		CreatedAt:     formatTime(form.CreatedAt),
		SubmittedAt:   formatTimePtr(form.SubmittedAt),
		ReviewedAt:    formatTimePtr(form.ReviewedAt),
		ReviewerID:    form.ReviewerID,
		ReviewComment: form.ReviewComment,
		ReviewMode:    string(form.ReviewMode),
	}
}

func mapForm(row model.PostSaleForm) (postsale.Form, error) {
	form := postsale.Form{
		ID:            row.FormID,
		HousingID:     row.HousingID,
		BeneficiaryID: row.BeneficiaryID,
		State:         postsale.FormState(row.State),
		ReviewerID:    row.ReviewerID,
		ReviewComment: row.ReviewComment,
		ReviewMode:    postsale.Mode(row.ReviewMode),
	}

	var err error
	if form.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return postsale.Form{}, err
	}
	if form.SubmittedAt, err = parseTimePtr(row.SubmittedAt); err != nil {
		return postsale.Form{}, err
	}
	if form.ReviewedAt, err = parseTimePtr(row.ReviewedAt); err != nil {
		return postsale.Form{}, err
	}
	return form, nil
}

func toItemRow(item postsale.Item) model.PostSaleItem {
	return model.PostSaleItem{
		ItemID:          item.ID,
		FormID:          item.FormID,
		Category:        item.Category,
		Description:     item.Description,
		OK:              item.OK,
		Severity:        item.Severity,
		Comment:         item.Comment,
		CreateIncidence: item.CreateIncidence,
		IncidenceID:     item.IncidenceID,
	}
}

func mapItem(row model.PostSaleItem) postsale.Item {
	return postsale.Item{
		ID:              row.ItemID,
		FormID:          row.FormID,
		Category:        row.Category,
		Description:     row.Description,
		OK:              row.OK,
		Severity:        row.Severity,
		Comment:         row.Comment,
		CreateIncidence: row.CreateIncidence,
		IncidenceID:     row.IncidenceID,
	}
}
