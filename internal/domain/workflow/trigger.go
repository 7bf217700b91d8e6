package workflow

// Trigger is an event that causes a state transition
type Trigger string

const (
	TriggerSubmitProof Trigger = "SUBMIT_PROOF"
	TriggerVerify      Trigger = "VERIFY"
	TriggerReject      Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
