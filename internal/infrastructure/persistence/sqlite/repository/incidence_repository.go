package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"incidencias/internal/domain/derivation"
	"incidencias/internal/domain/incidence"
	"incidencias/internal/domain/policy"
	"incidencias/internal/errs"
	"incidencias/internal/infrastructure/persistence/sqlite/model"
	"incidencias/internal/ports"
)

type IncidenceRepository struct {
	db *gorm.DB
}

var _ ports.IncidenceRepository = (*IncidenceRepository)(nil)

func NewIncidenceRepository(db *gorm.DB) *IncidenceRepository {
	return &IncidenceRepository{db: db}
}

func (r *IncidenceRepository) GetIncidence(ctx context.Context, incidenceID uint64) (incidence.Incidence, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return incidence.Incidence{}, err
	}

	var row model.Incidence
	if err := db.Where("incidence_id = ?", incidenceID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return incidence.Incidence{}, errs.NotFound("incidence %d", incidenceID)
		}
		return incidence.Incidence{}, errs.Wrap(err, "query incidence")
	}
	return mapIncidence(row)
}

func (r *IncidenceRepository) ListIncidences(ctx context.Context, filter ports.IncidenceFilter) ([]incidence.Incidence, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Incidence{})
	if filter.State != "" {
		query = query.Where("state = ?", string(filter.State))
	} else if !filter.IncludeTerminal {
		query = query.Where("state NOT IN ?", []string{string(incidence.StateClosed), string(incidence.StateDiscarded)})
	}
	if filter.HousingID != 0 {
		query = query.Where("housing_id = ?", filter.HousingID)
	}
	if filter.ReporterID != 0 {
		query = query.Where("reporter_id = ?", filter.ReporterID)
	}
	if filter.TechnicianID != 0 {
		query = query.Where("technician_id = ?", filter.TechnicianID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.Incidence
	if err := query.Order("incidence_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query incidences")
	}

	items := make([]incidence.Incidence, 0, len(rows))
	for _, row := range rows {
		item, err := mapIncidence(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *IncidenceRepository) ListHistory(ctx context.Context, incidenceID uint64) ([]incidence.HistoryEvent, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.HistoryEvent
	if err := db.Where("incidence_id = ?", incidenceID).Order("event_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query history")
	}
	return mapHistory(rows)
}

func (r *IncidenceRepository) ListHistoryAfter(ctx context.Context, afterEventID uint64, limit int) ([]incidence.HistoryEvent, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.HistoryEvent{}).Where("event_id > ?", afterEventID).Order("event_id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.HistoryEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query history feed")
	}
	return mapHistory(rows)
}

func (r *IncidenceRepository) CreateIncidence(ctx context.Context, record incidence.Incidence) (incidence.Incidence, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return incidence.Incidence{}, err
	}

	row := toIncidenceRow(record)
	row.IncidenceID = 0
	if err := db.Create(&row).Error; err != nil {
		return incidence.Incidence{}, errs.Wrap(err, "insert incidence")
	}
	record.ID = row.IncidenceID
	return record, nil
}

// PutIncidence replaces the whole row. Concurrent writers are last-write-wins.
func (r *IncidenceRepository) PutIncidence(ctx context.Context, record incidence.Incidence) (incidence.Incidence, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return incidence.Incidence{}, err
	}
	if record.ID == 0 {
		return incidence.Incidence{}, errs.Validation("incidence id is required")
	}

	row := toIncidenceRow(record)
	result := db.Model(&model.Incidence{}).
		Where("incidence_id = ?", record.ID).
		Select("*").
		Omit("incidence_id").
		Updates(&row)
	if result.Error != nil {
		return incidence.Incidence{}, errs.Wrap(result.Error, "update incidence")
	}
	if result.RowsAffected == 0 {
		return incidence.Incidence{}, errs.NotFound("incidence %d", record.ID)
	}
	return record, nil
}

func (r *IncidenceRepository) AppendHistory(ctx context.Context, event incidence.HistoryEvent) (incidence.HistoryEvent, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return incidence.HistoryEvent{}, err
	}
	if event.IncidenceID == 0 {
		return incidence.HistoryEvent{}, errs.Validation("history event needs an incidence id")
	}

	var diff datatypes.JSON
	if len(event.Diff) > 0 {
		raw, err := json.Marshal(event.Diff)
		if err != nil {
			return incidence.HistoryEvent{}, errs.Wrap(err, "encode history diff")
		}
		diff = datatypes.JSON(raw)
	}

	row := model.HistoryEvent{
		IncidenceID:   event.IncidenceID,
		ActorID:       event.ActorID,
		ActorRole:     string(event.ActorRole),
		EventType:     string(event.Type),
		PreviousState: stateString(event.PreviousState),
		NewState:      stateString(event.NewState),
		Comment:       event.Comment,
		Diff:          diff,
		CreatedAt:     formatTime(event.CreatedAt),
	}
	if err := db.Create(&row).Error; err != nil {
		return incidence.HistoryEvent{}, errs.Wrap(err, "insert history event")
	}
	event.EventID = row.EventID
	return event, nil
}

func toIncidenceRow(record incidence.Incidence) model.Incidence {
	var class *string
	if record.WarrantyClass != nil {
		value := string(*record.WarrantyClass)
		class = &value
	}

	return model.Incidence{
		IncidenceID:           record.ID,
		HousingID:             record.HousingID,
		ReporterID:            record.ReporterID,
		TechnicianID:          record.TechnicianID,
		Category:              record.Category,
		Description:           record.Description,
		Source:                string(record.Source),
		Priority:              string(record.Priority),
		PriorityOrigin:        string(record.PriorityOrigin),
		PriorityFinal:         string(record.PriorityFinal),
		PriorityBasis:         string(record.PriorityBasis),
		WarrantyClass:         class,
		WarrantyExpiry:        formatDatePtr(record.WarrantyExpiry),
		WarrantyValid:         record.WarrantyValid,
		WarrantySource:        string(record.WarrantySource),
		AttentionDeadline:     formatTime(record.AttentionDeadline),
		ClosureDeadline:       formatTime(record.ClosureDeadline),
		State:                 string(record.State),
		ReportedAt:            formatTime(record.ReportedAt),
		AssignedAt:            formatTimePtr(record.AssignedAt),
		InProcessAt:           formatTimePtr(record.InProcessAt),
		ResolvedAt:            formatTimePtr(record.ResolvedAt),
		ClosedAt:              formatTimePtr(record.ClosedAt),
		BeneficiaryConformity: record.BeneficiaryConformity,
		ConformityAt:          formatTimePtr(record.ConformityAt),
	}
}

func mapIncidence(row model.Incidence) (incidence.Incidence, error) {
	out := incidence.Incidence{
		ID:                    row.IncidenceID,
		HousingID:             row.HousingID,
		ReporterID:            row.ReporterID,
		TechnicianID:          row.TechnicianID,
		Category:              row.Category,
		Description:           row.Description,
		Source:                incidence.Source(row.Source),
		Priority:              policy.Priority(row.Priority),
		PriorityOrigin:        policy.Priority(row.PriorityOrigin),
		PriorityFinal:         policy.Priority(row.PriorityFinal),
		PriorityBasis:         derivation.Basis(row.PriorityBasis),
		WarrantyValid:         row.WarrantyValid,
		WarrantySource:        incidence.WarrantySource(row.WarrantySource),
		State:                 incidence.State(row.State),
		BeneficiaryConformity: row.BeneficiaryConformity,
	}
	if row.WarrantyClass != nil {
		class := policy.WarrantyClass(*row.WarrantyClass)
		out.WarrantyClass = &class
	}

	var err error
	if out.WarrantyExpiry, err = parseDatePtr(row.WarrantyExpiry); err != nil {
		return incidence.Incidence{}, err
	}
	if out.AttentionDeadline, err = parseTime(row.AttentionDeadline); err != nil {
		return incidence.Incidence{}, err
	}
	if out.ClosureDeadline, err = parseTime(row.ClosureDeadline); err != nil {
		return incidence.Incidence{}, err
	}
	if out.ReportedAt, err = parseTime(row.ReportedAt); err != nil {
		return incidence.Incidence{}, err
	}
	for _, field := range []struct {
		raw *string
		dst **time.Time
	}{
		{row.AssignedAt, &out.AssignedAt},
		{row.InProcessAt, &out.InProcessAt},
		{row.ResolvedAt, &out.ResolvedAt},
		{row.ClosedAt, &out.ClosedAt},
		{row.ConformityAt, &out.ConformityAt},
	} {
		if *field.dst, err = parseTimePtr(field.raw); err != nil {
			return incidence.Incidence{}, err
		}
	}
	return out, nil
}

func mapHistory(rows []model.HistoryEvent) ([]incidence.HistoryEvent, error) {
	items := make([]incidence.HistoryEvent, 0, len(rows))
	for _, row := range rows {
		createdAt, err := parseTime(row.CreatedAt)
		if err != nil {
			return nil, err
		}

		event := incidence.HistoryEvent{
			EventID:     row.EventID,
			IncidenceID: row.IncidenceID,
			ActorID:     row.ActorID,
			ActorRole:   incidence.Role(row.ActorRole),
			Type:        incidence.EventType(row.EventType),
			Comment:     row.Comment,
			CreatedAt:   createdAt,
		}
		if row.PreviousState != nil {
			state := incidence.State(*row.PreviousState)
			event.PreviousState = &state
		}
		if row.NewState != nil {
			state := incidence.State(*row.NewState)
			event.NewState = &state
		}
		if len(row.Diff) > 0 {
			if err := json.Unmarshal(row.Diff, &event.Diff); err != nil {
				return nil, errs.Wrapf(err, "decode diff of event %d", row.EventID)
			}
		}
		items = append(items, event)
	}
	return items, nil
}

func stateString(state *incidence.State) *string {
	if state == nil {
		return nil
	}
	value := string(*state)
	return &value
}
