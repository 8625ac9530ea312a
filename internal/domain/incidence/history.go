package incidence

import (
	"time"
)

type EventType string

const (
	EventCreated              EventType = "creacion"
	EventStateChanged         EventType = "cambio_estado"
	EventAssigned             EventType = "asignacion"
	EventComment              EventType = "comentario"
	EventBeneficiaryValidated EventType = "validacion_beneficiario"
	EventBeneficiaryRejected  EventType = "rechazo_beneficiario"
	EventCreatedFromPostSale  EventType = "creada_desde_posventa"
	EventMediaAdded           EventType = "media_agregada"
)

type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Diff maps a field name to its before/after values.
type Diff map[string]Change

// HistoryEvent is immutable once appended. EventID is assigned by the store and doubles as the
// feed cursor.
type HistoryEvent struct {
	EventID       uint64
	IncidenceID   uint64
	ActorID       uint64
	ActorRole     Role
	Type          EventType
	PreviousState *State
	NewState      *State
	Comment       *string
	Diff          Diff
	CreatedAt     time.Time
}

type diffBuilder struct {
	diff Diff
}

func (b *diffBuilder) set(field string, from any, to any) {
	if from == to {
		return
	}
	if b.diff == nil {
		b.diff = Diff{}
	}
	b.diff[field] = Change{From: from, To: to}
}

func (b *diffBuilder) result() Diff {
	return b.diff
}

func statePtr(s State) *State {
	return &s
}

func optionalComment(comment string) *string {
	if comment == "" {
		return nil
	}
	return &comment
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func idValue(id *uint64) any {
	if id == nil {
		return nil
	}
	return *id
}
