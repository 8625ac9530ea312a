package incidence

import (
	"time"

	"incidencias/internal/domain/derivation"
	"incidencias/internal/domain/policy"
	"incidencias/internal/domain/sla"
)

type State string

const (
	StateOpen      State = "abierta"
	StateInProcess State = "en_proceso"
	StateOnHold    State = "en_espera"
	StateResolved  State = "resuelta"
	StateClosed    State = "cerrada"
	StateDiscarded State = "descartada"
)

var allStates = []State{StateOpen, StateInProcess, StateOnHold, StateResolved, StateClosed, StateDiscarded}

func (s State) Valid() bool {
	for _, state := range allStates {
		if s == state {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool {
	return s == StateClosed || s == StateDiscarded
}

type Source string

const (
	SourceBeneficiary Source = "beneficiary"
	SourcePostSale    Source = "post_sale"
	SourceTechnician  Source = "technician"
)

func (s Source) Valid() bool {
	return s == SourceBeneficiary || s == SourcePostSale || s == SourceTechnician
}

type WarrantySource string

const (
	WarrantySourceAuto        WarrantySource = "auto"
	WarrantySourceBeneficiary WarrantySource = "beneficiary"
	WarrantySourcePostSale    WarrantySource = "post_sale"
)

type Role string

const (
	RoleAdmin           Role = "administrador"
	RoleTechnician      Role = "tecnico"
	RoleFieldTechnician Role = "tecnico_campo"
	RoleBeneficiary     Role = "beneficiario"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTechnician, RoleFieldTechnician, RoleBeneficiary:
		return true
	default:
		return false
	}
}

// Staff covers every role that works incidences rather than reporting them.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleTechnician || r == RoleFieldTechnician
}

type Actor struct {
	ID   uint64
	Role Role
}

// Access is what the record store knows about the actor relative to the incidence's housing.
type Access struct {
	HasProjectScope bool
}

type Incidence struct {
	ID           uint64
	HousingID    uint64
	ReporterID   uint64
	TechnicianID *uint64

	Category    string
	Description string
	Source      Source

	Priority       policy.Priority
	PriorityOrigin policy.Priority
	PriorityFinal  policy.Priority
	PriorityBasis  derivation.Basis

	WarrantyClass  *policy.WarrantyClass
	WarrantyExpiry *time.Time
	WarrantyValid  *bool
	WarrantySource WarrantySource

	AttentionDeadline time.Time
	ClosureDeadline   time.Time

	State       State
	ReportedAt  time.Time
	AssignedAt  *time.Time
	InProcessAt *time.Time
	ResolvedAt  *time.Time
	ClosedAt    *time.Time

	BeneficiaryConformity *bool
	ConformityAt          *time.Time
}

func (i Incidence) SLASnapshot() sla.Snapshot {
	snapshot := sla.Snapshot{Priority: i.PriorityFinal}
	if !i.ReportedAt.IsZero() {
		reported := i.ReportedAt
		snapshot.ReportedAt = &reported
	}
	if !i.ClosureDeadline.IsZero() {
		closure := i.ClosureDeadline
		snapshot.ClosureDeadline = &closure
	}
	return snapshot
}

func (i Incidence) AssignedTo(actorID uint64) bool {
	return i.TechnicianID != nil && *i.TechnicianID == actorID
}
