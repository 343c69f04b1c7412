package workflow

import (
	"context"
	"fmt"
	"time"
)

// GuardFunc decides whether a guarded transition may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects the transition table of a run
type StateMachineBuilder interface {
	// Configure returns the configuration of transitions leaving state
	Configure(state State) StateConfiguration

	// Build creates a machine positioned at initialState. Machines built from
	// the same builder share nothing.
	Build(initialState State) StateMachine
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration interface {
	// Permit allows a trigger to transition to the target state
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf is Permit behind a guard. Several guarded edges may share a
	// trigger; the first one whose guard passes is taken.
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type edge struct {
	to    State
	guard GuardFunc
}

type builder struct {
	table map[State]map[Trigger][]edge
}

type stateConfig struct {
	edges map[Trigger][]edge
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &builder{table: make(map[State]map[Trigger][]edge)}
}

func (b *builder) Configure(state State) StateConfiguration {
	mustBeValid("state", state)

	edges, ok := b.table[state]
	if !ok {
		edges = make(map[Trigger][]edge)
		b.table[state] = edges
	}
	return &stateConfig{edges: edges}
}

func (b *builder) Build(initialState State) StateMachine {
	mustBeValid("initial state", initialState)

	table := make(map[State]map[Trigger][]edge, len(b.table))
	for state, edges := range b.table {
		copied := make(map[Trigger][]edge, len(edges))
		for trigger, list := range edges {
			copied[trigger] = append([]edge(nil), list...)
		}
		table[state] = copied
	}

	return &machine{current: initialState, edges: table, now: time.Now}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	mustBeValid("target state", toState)
	c.edges[trigger] = append(c.edges[trigger], edge{to: toState, guard: guard})
	return c
}

// mustBeValid panics on an unknown state. The transition table is fixed at
// startup, so this is a programming error.
func mustBeValid(what string, s State) {
	if !s.IsValid() {
		panic(fmt.Sprintf("invalid %s: %s", what, s))
	}
}
