package workflow

// State is a lifecycle state of a voucher or a payment submission.
// The string values match the persisted status columns.
type State string

const (
	StatePending  State = "Pending"
	StatePaid     State = "Paid"
	StateDefault  State = "Default"
	StateVerified State = "Verified"
	StateRejected State = "Rejected"
)

// IsTerminal returns true if no further transitions leave the state.
// Default is not terminal: a defaulted voucher accepts a new proof.
func (s State) IsTerminal() bool {
	switch s {
	case StatePaid, StateVerified, StateRejected:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	switch s {
	case StatePending, StatePaid, StateDefault, StateVerified, StateRejected:
		return true
	default:
		return false
	}
}
