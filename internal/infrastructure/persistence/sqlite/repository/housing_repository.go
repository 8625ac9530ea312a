package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"incidencias/internal/errs"
	"incidencias/internal/infrastructure/persistence/sqlite/model"
	"incidencias/internal/ports"
)

type HousingRepository struct {
	db *gorm.DB
}

var _ ports.HousingDirectory = (*HousingRepository)(nil)

func NewHousingRepository(db *gorm.DB) *HousingRepository {
	return &HousingRepository{db: db}
}

func (r *HousingRepository) GetHousing(ctx context.Context, housingID uint64) (ports.Housing, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Housing{}, err
	}

	var row model.Housing
	if err := db.Where("housing_id = ?", housingID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Housing{}, errs.NotFound("housing %d", housingID)
		}
		return ports.Housing{}, errs.Wrap(err, "query housing")
	}

	delivery, err := parseDatePtr(row.DeliveryDate)
	if err != nil {
		return ports.Housing{}, err
	}
	return ports.Housing{
		HousingID:     row.HousingID,
		ProjectID:     row.ProjectID,
		Code:          row.Code,
		BeneficiaryID: row.BeneficiaryID,
		DeliveryDate:  delivery,
	}, nil
}

// GetHousingDeliveryDate returns nil when the housing has no recorded delivery.
func (r *HousingRepository) GetHousingDeliveryDate(ctx context.Context, housingID uint64) (*time.Time, error) {
	housing, err := r.GetHousing(ctx, housingID)
	if err != nil {
		return nil, err
	}
	return housing.DeliveryDate, nil
}

func (r *HousingRepository) HousingForBeneficiary(ctx context.Context, beneficiaryID uint64) (uint64, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, false, err
	}

	var row model.Housing
	if err := db.Where("beneficiary_id = ?", beneficiaryID).Order("housing_id asc").Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, errs.Wrap(err, "query beneficiary housing")
	}
	return row.HousingID, true, nil
}

func (r *HousingRepository) HasProjectScope(ctx context.Context, actorID uint64, housingID uint64) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	sub := db.Model(&model.Housing{}).Select("project_id").Where("housing_id = ?", housingID)
	var count int64
	if err := db.Model(&model.ProjectScope{}).
		Where("actor_id = ? AND project_id IN (?)", actorID, sub).
		Count(&count).Error; err != nil {
		return false, errs.Wrap(err, "count project scope")
	}
	return count > 0, nil
}

func (r *HousingRepository) SaveHousing(ctx context.Context, housing ports.Housing) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}
	if housing.HousingID == 0 {
		return errs.Validation("housing id is required")
	}

	row := model.Housing{
		HousingID:     housing.HousingID,
		ProjectID:     housing.ProjectID,
		Code:          housing.Code,
		BeneficiaryID: housing.BeneficiaryID,
		DeliveryDate:  formatDatePtr(housing.DeliveryDate),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "housing_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"project_id", "code", "beneficiary_id", "delivery_date"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert housing")
	}
	return nil
}

func (r *HousingRepository) GrantScope(ctx context.Context, actorID uint64, projectID uint64) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.ProjectScope{ActorID: actorID, ProjectID: projectID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert project scope")
	}
	return nil
}
