package incidence

import (
	"strings"
	"time"

	"incidencias/internal/domain/derivation"
	"incidencias/internal/domain/policy"
	"incidencias/internal/domain/sla"
	"incidencias/internal/errs"
)

// Machine owns the transition table. It is pure: it reads a snapshot and returns a replacement
// record plus the events to append, leaving persistence to the caller.
type Machine struct {
	deriver *derivation.Deriver
	sla     *sla.Calculator
}

func NewMachine(deriver *derivation.Deriver, calculator *sla.Calculator) *Machine {
	return &Machine{deriver: deriver, sla: calculator}
}

// PostSaleOrigin links a generated incidence back to the review that produced it.
type PostSaleOrigin struct {
	FormID  uint64
	BatchID string
	Mode    string
	ItemIDs []uint64
}

type CreateRequest struct {
	HousingID   uint64
	ReporterID  uint64
	Category    string
	Description string
	// Source defaults from the actor role when empty.
	Source        Source
	WarrantyClass *policy.WarrantyClass
	DeliveryDate  *time.Time
	TechnicianID  *uint64
	Origin        *PostSaleOrigin
}

func (m *Machine) Create(req CreateRequest, actor Actor, now time.Time) (Incidence, []HistoryEvent, error) {
	if !actor.Role.Valid() {
		return Incidence{}, nil, errs.PermissionDenied("unknown role %q", actor.Role)
	}

	category := strings.TrimSpace(req.Category)
	description := strings.TrimSpace(req.Description)
	if category == "" {
		return Incidence{}, nil, errs.Validation("category is required")
	}
	if description == "" {
		return Incidence{}, nil, errs.Validation("description is required")
	}
	if req.HousingID == 0 {
		return Incidence{}, nil, errs.Validation("reporter has no housing assignment")
	}
	if req.WarrantyClass != nil && !req.WarrantyClass.Valid() {
		return Incidence{}, nil, errs.Validation("invalid warranty class %q", *req.WarrantyClass)
	}

	source := req.Source
	if source == "" {
		source = SourceTechnician
		if actor.Role == RoleBeneficiary {
			source = SourceBeneficiary
		}
	}
	if !source.Valid() {
		return Incidence{}, nil, errs.Validation("invalid source %q", source)
	}
	if actor.Role == RoleBeneficiary && source != SourceBeneficiary {
		return Incidence{}, nil, errs.PermissionDenied("beneficiaries can only report their own incidences")
	}

	reporterID := req.ReporterID
	if reporterID == 0 {
		reporterID = actor.ID
	}
	if actor.Role == RoleBeneficiary && reporterID != actor.ID {
		return Incidence{}, nil, errs.PermissionDenied("beneficiaries can only report their own incidences")
	}

	derived, err := m.deriver.Derive(category)
	if err != nil {
		return Incidence{}, nil, err
	}

	class := m.deriver.WarrantyClassFor(category)
	warrantySource := WarrantySourceAuto
	if req.WarrantyClass != nil {
		explicit := *req.WarrantyClass
		class = &explicit
		warrantySource = WarrantySourceBeneficiary
	}
	if source == SourcePostSale {
		warrantySource = WarrantySourcePostSale
	}

	deadlines := m.sla.DeadlinesFor(derived.Priority, now)

	created := Incidence{
		HousingID:         req.HousingID,
		ReporterID:        reporterID,
		TechnicianID:      copyID(req.TechnicianID),
		Category:          category,
		Description:       description,
		Source:            source,
		Priority:          derived.Priority,
		PriorityOrigin:    derived.Priority,
		PriorityFinal:     derived.Priority,
		PriorityBasis:     derived.Basis,
		WarrantyClass:     class,
		WarrantyExpiry:    m.deriver.WarrantyExpiry(req.DeliveryDate, class),
		WarrantyValid:     m.deriver.WarrantyValid(req.DeliveryDate, class, now),
		WarrantySource:    warrantySource,
		AttentionDeadline: deadlines.Attention,
		ClosureDeadline:   deadlines.Closure,
		State:             StateOpen,
		ReportedAt:        now,
	}

	var diff diffBuilder
	diff.set("priority", nil, string(created.Priority))
	diff.set("priority_basis", nil, string(created.PriorityBasis))
	if class != nil {
		diff.set("warranty_class", nil, string(*class))
	}
	diff.set("source", nil, string(source))

	events := []HistoryEvent{{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Type:      EventCreated,
		NewState:  statePtr(StateOpen),
		Diff:      diff.result(),
		CreatedAt: now,
	}}

	if source == SourcePostSale && req.Origin != nil {
		items := make([]any, 0, len(req.Origin.ItemIDs))
		for _, id := range req.Origin.ItemIDs {
			items = append(items, id)
		}
		events = append(events, HistoryEvent{
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Type:      EventCreatedFromPostSale,
			NewState:  statePtr(StateOpen),
			Diff: Diff{
				"postsale_form_id": {To: req.Origin.FormID},
				"review_batch_id":  {To: req.Origin.BatchID},
				"mode":             {To: req.Origin.Mode},
				"items":            {To: items},
			},
			CreatedAt: now,
		})
	}

	return created, events, nil
}

// Apply authorizes and performs a transition. current is never modified; on error the returned
// incidence is the zero value.
func (m *Machine) Apply(current Incidence, transition Transition, actor Actor, access Access, now time.Time) (Incidence, HistoryEvent, error) {
	if current.State.Terminal() {
		return Incidence{}, HistoryEvent{}, errs.InvalidTransition("incidence %d is %s", current.ID, current.State)
	}
	if !actor.Role.Valid() {
		return Incidence{}, HistoryEvent{}, errs.PermissionDenied("unknown role %q", actor.Role)
	}

	switch t := transition.(type) {
	case Assign:
		return m.assign(current, t, actor, access, now)
	case ChangeState:
		return m.changeState(current, t, actor, now)
	case Close:
		return m.close(current, t, actor, now)
	case BeneficiaryValidation:
		return m.validate(current, t, actor, now)
	case Discard:
		return m.discard(current, t, actor, now)
	default:
		return Incidence{}, HistoryEvent{}, errs.Validation("unsupported transition %T", transition)
	}
}

func (m *Machine) assign(current Incidence, t Assign, actor Actor, access Access, now time.Time) (Incidence, HistoryEvent, error) {
	technicianID := t.TechnicianID
	if technicianID == 0 {
		technicianID = actor.ID
	}

	switch actor.Role {
	case RoleAdmin, RoleTechnician:
	case RoleFieldTechnician:
		if technicianID != actor.ID {
			return Incidence{}, HistoryEvent{}, errs.PermissionDenied("field technicians can only assign themselves")
		}
		if !access.HasProjectScope && current.TechnicianID != nil && *current.TechnicianID != actor.ID {
			return Incidence{}, HistoryEvent{}, errs.PermissionDenied("incidence %d is assigned to another technician", current.ID)
		}
	default:
		return Incidence{}, HistoryEvent{}, errs.PermissionDenied("role %s cannot assign incidences", actor.Role)
	}

	if current.State != StateOpen && current.State != StateInProcess {
		return Incidence{}, HistoryEvent{}, errs.InvalidTransition("cannot assign from %s", current.State)
	}

	next := current
	var diff diffBuilder
	diff.set("technician_id", idValue(current.TechnicianID), technicianID)
	next.TechnicianID = &technicianID
	next.State = StateInProcess
	stampOnce(&next.AssignedAt, now, "assigned_at", &diff)
	stampOnce(&next.InProcessAt, now, "in_process_at", &diff)

	return next, m.event(current, next, actor, EventAssigned, t.Comment, diff, now), nil
}

func (m *Machine) changeState(current Incidence, t ChangeState, actor Actor, now time.Time) (Incidence, HistoryEvent, error) {
	if !t.Target.Valid() {
		return Incidence{}, HistoryEvent{}, errs.Validation("unknown state %q", t.Target)
	}

	switch actor.Role {
	case RoleAdmin, RoleTechnician:
	case RoleFieldTechnician:
		if !current.AssignedTo(actor.ID) {
			return Incidence{}, HistoryEvent{}, errs.PermissionDenied("incidence %d is not assigned to actor %d", current.ID, actor.ID)
		}
	default:
		return Incidence{}, HistoryEvent{}, errs.PermissionDenied("role %s cannot change state", actor.Role)
	}

	if !canReach(current.State, t.Target) {
		return Incidence{}, HistoryEvent{}, errs.InvalidTransition("%s -> %s", current.State, t.Target)
	}

	next := current
	next.State = t.Target
	var diff diffBuilder
	switch t.Target {
	case StateInProcess:
		stampOnce(&next.InProcessAt, now, "in_process_at", &diff)
	case StateResolved:
		stampOnce(&next.ResolvedAt, now, "resolved_at", &diff)
	}

	return next, m.event(current, next, actor, EventStateChanged, t.Comment, diff, now), nil
}

func (m *Machine) close(current Incidence, t Close, actor Actor, now time.Time) (Incidence, HistoryEvent, error) {
	if actor.Role != RoleAdmin && actor.Role != RoleTechnician {
		return Incidence{}, HistoryEvent{}, errs.PermissionDenied("role %s cannot close incidences", actor.Role)
	}
	if current.State != StateResolved {
		return Incidence{}, HistoryEvent{}, errs.InvalidTransition("cannot close from %s", current.State)
	}
	if !t.Conforme {
		return Incidence{}, HistoryEvent{}, errs.Validation("closing requires beneficiary conformity")
	}

	next, diff := closeWithConformity(current, now)
	return next, m.event(current, next, actor, EventStateChanged, t.Comment, diff, now), nil
}

func (m *Machine) validate(current Incidence, t BeneficiaryValidation, actor Actor, now time.Time) (Incidence, HistoryEvent, error) {
	if actor.Role != RoleBeneficiary || actor.ID != current.ReporterID {
		return Incidence{}, HistoryEvent{}, errs.PermissionDenied("only the reporting beneficiary can validate incidence %d", current.ID)
	}
	if current.State != StateResolved {
		return Incidence{}, HistoryEvent{}, errs.InvalidTransition("cannot validate from %s", current.State)
	}

	comment := strings.TrimSpace(t.Comment)
	if t.Conforme {
		next, diff := closeWithConformity(current, now)
		return next, m.event(current, next, actor, EventBeneficiaryValidated, comment, diff, now), nil
	}
	if comment == "" {
		return Incidence{}, HistoryEvent{}, errs.Validation("a comment is required to reject the resolution")
	}

	next := current
	next.State = StateInProcess
	rejected := false
	next.BeneficiaryConformity = &rejected

	var diff diffBuilder
	diff.set("beneficiary_conformity", boolValue(current.BeneficiaryConformity), false)
	return next, m.event(current, next, actor, EventBeneficiaryRejected, comment, diff, now), nil
}

func (m *Machine) discard(current Incidence, t Discard, actor Actor, now time.Time) (Incidence, HistoryEvent, error) {
	if actor.Role != RoleAdmin {
		return Incidence{}, HistoryEvent{}, errs.PermissionDenied("only administrators can discard incidences")
	}

	next := current
	next.State = StateDiscarded
	return next, m.event(current, next, actor, EventStateChanged, t.Comment, diffBuilder{}, now), nil
}

// Comment records commentary without touching the record.
func (m *Machine) Comment(current Incidence, actor Actor, text string, now time.Time) (HistoryEvent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return HistoryEvent{}, errs.Validation("comment is required")
	}
	if err := canAnnotate(current, actor); err != nil {
		return HistoryEvent{}, err
	}
	return HistoryEvent{
		IncidenceID: current.ID,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Type:        EventComment,
		Comment:     &text,
		CreatedAt:   now,
	}, nil
}

// RecordMedia registers a reference to externally stored evidence (photo, document).
func (m *Machine) RecordMedia(current Incidence, actor Actor, ref string, now time.Time) (HistoryEvent, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return HistoryEvent{}, errs.Validation("media reference is required")
	}
	if err := canAnnotate(current, actor); err != nil {
		return HistoryEvent{}, err
	}
	return HistoryEvent{
		IncidenceID: current.ID,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Type:        EventMediaAdded,
		Diff:        Diff{"media": {To: ref}},
		CreatedAt:   now,
	}, nil
}

func canAnnotate(current Incidence, actor Actor) error {
	if current.State.Terminal() {
		return errs.InvalidTransition("incidence %d is %s", current.ID, current.State)
	}
	if actor.Role.Staff() {
		return nil
	}
	if actor.Role == RoleBeneficiary && actor.ID == current.ReporterID {
		return nil
	}
	return errs.PermissionDenied("actor %d cannot annotate incidence %d", actor.ID, current.ID)
}

func (m *Machine) event(previous Incidence, next Incidence, actor Actor, eventType EventType, comment string, diff diffBuilder, now time.Time) HistoryEvent {
	diff.set("state", string(previous.State), string(next.State))
	return HistoryEvent{
		IncidenceID:   previous.ID,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
		Type:          eventType,
		PreviousState: statePtr(previous.State),
		NewState:      statePtr(next.State),
		Comment:       optionalComment(strings.TrimSpace(comment)),
		Diff:          diff.result(),
		CreatedAt:     now,
	}
}

func closeWithConformity(current Incidence, now time.Time) (Incidence, diffBuilder) {
	next := current
	next.State = StateClosed
	conforme := true
	next.BeneficiaryConformity = &conforme

	var diff diffBuilder
	diff.set("beneficiary_conformity", boolValue(current.BeneficiaryConformity), true)
	at := now
	next.ConformityAt = &at
	diff.set("conformity_at", timeValue(current.ConformityAt), timeValue(&at))
	stampOnce(&next.ResolvedAt, now, "resolved_at", &diff)
	stampOnce(&next.ClosedAt, now, "closed_at", &diff)
	return next, diff
}

// stampOnce sets *field to now only when unset; lifecycle timestamps never move.
func stampOnce(field **time.Time, now time.Time, name string, diff *diffBuilder) {
	if *field != nil {
		return
	}
	at := now
	*field = &at
	diff.set(name, nil, timeValue(&at))
}

func boolValue(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func copyID(id *uint64) *uint64 {
	if id == nil {
		return nil
	}
	value := *id
	return &value
}
