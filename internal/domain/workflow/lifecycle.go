package workflow

import (
	"context"
	"fmt"
)

// Voucher lifecycle:
//
//	Pending --SUBMIT_PROOF--> Pending   (no active submission)
//	Pending --VERIFY--------> Paid
//	Pending --REJECT--------> Default
//	Default --SUBMIT_PROOF--> Default   (no active submission)
//	Default --VERIFY--------> Paid
//	Default --REJECT--------> Default
//
// Paid is terminal and nothing returns to Pending.
//
// Submission lifecycle: Pending moves once to Verified or Rejected.
var (
	voucherLifecycle    StateMachineBuilder
	submissionLifecycle StateMachineBuilder
)

func init() {
	voucherLifecycle = NewBuilder()
	voucherLifecycle.Configure(StatePending).
		PermitIf(TriggerSubmitProof, StatePending, noActiveSubmission).
		Permit(TriggerVerify, StatePaid).
		Permit(TriggerReject, StateDefault)
	voucherLifecycle.Configure(StateDefault).
		PermitIf(TriggerSubmitProof, StateDefault, noActiveSubmission).
		Permit(TriggerVerify, StatePaid).
		Permit(TriggerReject, StateDefault)

	submissionLifecycle = NewBuilder()
	submissionLifecycle.Configure(StatePending).
		Permit(TriggerVerify, StateVerified).
		Permit(TriggerReject, StateRejected)
}

type activeSubmissionKey struct{}

// WithActiveSubmission records on ctx whether the voucher already has a
// Pending or Verified submission. SUBMIT_PROOF is refused when it does.
func WithActiveSubmission(ctx context.Context, active bool) context.Context {
	return context.WithValue(ctx, activeSubmissionKey{}, active)
}

func noActiveSubmission(ctx context.Context) bool {
	active, _ := ctx.Value(activeSubmissionKey{}).(bool)
	return !active
}

var voucherStates = map[State]bool{StatePending: true, StatePaid: true, StateDefault: true}

var submissionStates = map[State]bool{StatePending: true, StateVerified: true, StateRejected: true}

// NewVoucherMachine positions a voucher state machine at the persisted status
func NewVoucherMachine(status string) (StateMachine, error) {
	s := State(status)
	if !voucherStates[s] {
		return nil, fmt.Errorf("%w: voucher status %q", ErrInvalidState, status)
	}
	return voucherLifecycle.Build(s), nil
}

// NewSubmissionMachine positions a submission state machine at the persisted status
func NewSubmissionMachine(status string) (StateMachine, error) {
	s := State(status)
	if !submissionStates[s] {
		return nil, fmt.Errorf("%w: submission status %q", ErrInvalidState, status)
	}
	return submissionLifecycle.Build(s), nil
}

// DecisionTrigger maps an admin decision to the trigger that applies it
func DecisionTrigger(verify bool) Trigger {
	if verify {
		return TriggerVerify
	}
	return TriggerReject
}
