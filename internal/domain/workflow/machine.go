package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// StateMachine tracks the stage of one import run and validates moves
// between stages. It is not safe for concurrent use; the owning run
// serializes access.
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger

	// History returns the transitions taken so far, oldest first
	History() []Transition
}

// Transition is one recorded state change
type Transition struct {
	From    State     `json:"from"`
	To      State     `json:"to"`
	Trigger Trigger   `json:"trigger"`
	At      time.Time `json:"at"`
}

type machine struct {
	current State
	edges   map[State]map[Trigger][]edge
	history []Transition
	now     func() time.Time
}

func (m *machine) State() State {
	return m.current
}

// CanFire does not evaluate guards; they need the caller's context
func (m *machine) CanFire(trigger Trigger) bool {
	return len(m.edges[m.current][trigger]) > 0
}

func (m *machine) Fire(ctx context.Context, trigger Trigger) error {
	from := m.current
	if from.IsTerminal() {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrTerminalState, trigger, from)
	}

	candidates := m.edges[from][trigger]
	if len(candidates) == 0 {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, from)
	}

	for _, e := range candidates {
		if e.guard != nil && !e.guard(ctx) {
			continue
		}
		m.current = e.to
		m.history = append(m.history, Transition{From: from, To: e.to, Trigger: trigger, At: m.now()})
		return nil
	}

	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, from)
}

func (m *machine) PermittedTriggers() []Trigger {
	out := make([]Trigger, 0, len(m.edges[m.current]))
	for trigger := range m.edges[m.current] {
		out = append(out, trigger)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *machine) History() []Transition {
	return append([]Transition(nil), m.history...)
}
