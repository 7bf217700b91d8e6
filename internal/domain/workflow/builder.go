package workflow

import (
	"context"
	"fmt"
	"sync/atomic"
)

// GuardFunc evaluates whether a transition is allowed
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns the configuration for the given source state
	Configure(state State) StateConfiguration

	// Build creates a state machine positioned at initialState
	Build(initialState State) StateMachine
}

// StateConfiguration configures transitions leaving one state
type StateConfiguration interface {
	// Permit allows trigger to move the machine to toState
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf allows trigger to move the machine to toState when guard passes
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type transition struct {
	toState State
	guard   GuardFunc
}

type stateConfig struct {
	table       *transitionTable
	transitions map[Trigger][]transition
}

// transitionTable is shared by every machine built from one builder. It is
// frozen by the first Build so machines can read it without locking.
type transitionTable struct {
	states map[State]*stateConfig
	frozen atomic.Bool
}

type stateMachineBuilder struct {
	table *transitionTable
}

type stateMachine struct {
	currentState State
	table        *transitionTable
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		table: &transitionTable{states: make(map[State]*stateConfig)},
	}
}

// Configure returns the configuration for the given source state.
// Lifecycles are declared at init time, so an unknown state or a builder
// that has already built a machine panics.
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if b.table.frozen.Load() {
		panic(fmt.Sprintf("configure %s after build", state))
	}

	config, exists := b.table.states[state]
	if !exists {
		config = &stateConfig{table: b.table, transitions: make(map[Trigger][]transition)}
		b.table.states[state] = config
	}

	return config
}

// Build creates a machine positioned at initialState and freezes the table
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}
	b.table.frozen.Store(true)

	return &stateMachine{
		currentState: initialState,
		table:        b.table,
	}
}

// Permit allows trigger to move the machine to toState
func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

// PermitIf allows trigger to move the machine to toState when guard passes.
// Guards are tried in declaration order.
func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	if c.table.frozen.Load() {
		panic(fmt.Sprintf("permit %s after build", trigger))
	}

	c.transitions[trigger] = append(c.transitions[trigger], transition{
		toState: toState,
		guard:   guard,
	})

	return c
}

func (m *stateMachine) transitionsFor(trigger Trigger) []transition {
	config, exists := m.table.states[m.currentState]
	if !exists {
		return nil
	}
	return config.transitions[trigger]
}

func (m *stateMachine) State() State {
	return m.currentState
}

// CanFire reports whether any transition is declared for trigger.
// Guards are not evaluated here because they need a context.
func (m *stateMachine) CanFire(trigger Trigger) bool {
	return len(m.transitionsFor(trigger)) > 0
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	transitions := m.transitionsFor(trigger)
	if len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.currentState)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.currentState = t.toState
			return nil
		}
	}

	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.currentState)
}
