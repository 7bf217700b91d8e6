package workflow

import (
	"context"
	"errors"
)

var (
	// ErrInvalidTransition is returned when the current state does not accept a trigger
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned for a status outside the lifecycle
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when every guarded transition refuses
	ErrGuardFailed = errors.New("guard condition failed")
)

// StateMachine tracks the current state of one record and validates transitions
type StateMachine interface {
	State() State

	// CanFire returns true if the trigger is declared for the current state
	CanFire(trigger Trigger) bool

	// Fire executes the trigger, moving to the target state if allowed
	Fire(ctx context.Context, trigger Trigger) error
}
