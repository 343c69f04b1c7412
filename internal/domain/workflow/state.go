package workflow

// State represents a stage reached by an import run
type State string

const (
	StateIdle       State = "IDLE"
	StateParsed     State = "PARSED"
	StateMapped     State = "MAPPED"
	StateMatched    State = "MATCHED"
	StateNormalized State = "NORMALIZED"
	StateValidated  State = "VALIDATED"
	StateImported   State = "IMPORTED"
	StateCancelled  State = "CANCELLED"
)

// stageOrder ranks the forward stages; CANCELLED has no rank
var stageOrder = map[State]int{
	StateIdle:       0,
	StateParsed:     1,
	StateMapped:     2,
	StateMatched:    3,
	StateNormalized: 4,
	StateValidated:  5,
	StateImported:   6,
}

var validStates = map[State]bool{
	StateIdle:       true,
	StateParsed:     true,
	StateMapped:     true,
	StateMatched:    true,
	StateNormalized: true,
	StateValidated:  true,
	StateImported:   true,
	StateCancelled:  true,
}

var terminalStates = map[State]bool{
	StateImported:  true,
	StateCancelled: true,
}

// ForwardStates lists the non-terminal stages in pipeline order
func ForwardStates() []State {
	return []State{StateIdle, StateParsed, StateMapped, StateMatched, StateNormalized, StateValidated}
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid run state
func (s State) IsValid() bool {
	return validStates[s]
}

// Before reports whether s comes strictly earlier than other in the pipeline.
// CANCELLED is never before or after anything.
func (s State) Before(other State) bool {
	a, ok := stageOrder[s]
	if !ok {
		return false
	}
	b, ok := stageOrder[other]
	if !ok {
		return false
	}
	return a < b
}
