package ports

import (
	"context"

	"incidencias/internal/domain/incidence"
)

type IncidenceFilter struct {
	State           incidence.State
	HousingID       uint64
	ReporterID      uint64
	TechnicianID    uint64
	IncludeTerminal bool
	Limit           int
}

type IncidenceReadRepository interface {
	// GetIncidence returns an errs.ErrNotFound kind error for unknown ids.
	GetIncidence(ctx context.Context, incidenceID uint64) (incidence.Incidence, error)
	ListIncidences(ctx context.Context, filter IncidenceFilter) ([]incidence.Incidence, error)
	ListHistory(ctx context.Context, incidenceID uint64) ([]incidence.HistoryEvent, error)
	ListHistoryAfter(ctx context.Context, afterEventID uint64, limit int) ([]incidence.HistoryEvent, error)
}

// IncidenceRepository is the record store. History has no update or delete path.
type IncidenceRepository interface {
	IncidenceReadRepository
	CreateIncidence(ctx context.Context, record incidence.Incidence) (incidence.Incidence, error)
	PutIncidence(ctx context.Context, record incidence.Incidence) (incidence.Incidence, error)
	AppendHistory(ctx context.Context, event incidence.HistoryEvent) (incidence.HistoryEvent, error)
}
