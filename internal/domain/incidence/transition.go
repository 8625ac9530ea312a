package incidence

// Transition is the closed set of state-affecting requests accepted by Machine.Apply.
type Transition interface {
	Name() string
	sealed()
}

// Assign hands the incidence to a technician. A zero TechnicianID means self-assignment.
type Assign struct {
	TechnicianID uint64
	Comment      string
}

// ChangeState moves between working states. Closing and discarding have their own transitions.
type ChangeState struct {
	Target  State
	Comment string
}

// Close is the supervisor path to cerrada and requires recorded beneficiary conformity.
type Close struct {
	Conforme bool
	Comment  string
}

// BeneficiaryValidation is the reporting beneficiary accepting or rejecting a resolution.
type BeneficiaryValidation struct {
	Conforme bool
	Comment  string
}

type Discard struct {
	Comment string
}

func (Assign) Name() string                { return "assign" }
func (ChangeState) Name() string           { return "change_state" }
func (Close) Name() string                 { return "close" }
func (BeneficiaryValidation) Name() string { return "beneficiary_validation" }
func (Discard) Name() string               { return "discard" }

func (Assign) sealed()                {}
func (ChangeState) sealed()           {}
func (Close) sealed()                 {}
func (BeneficiaryValidation) sealed() {}
func (Discard) sealed()               {}

// reachable lists the working-state moves ChangeState may perform.
var reachable = map[State][]State{
	StateInProcess: {StateOnHold, StateResolved},
	StateOnHold:    {StateInProcess},
}

func canReach(from State, to State) bool {
	for _, target := range reachable[from] {
		if target == to {
			return true
		}
	}
	return false
}
