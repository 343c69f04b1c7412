package event

// Type identifies the type of run lifecycle event
type Type string

const (
	TypeRunStarted        Type = "run.started"
	TypeStageCompleted    Type = "run.stage_completed"
	TypeCorrectionApplied Type = "run.correction_applied"
	TypeRunRewound        Type = "run.rewound"
	TypeRunCancelled      Type = "run.cancelled"
	TypeImportCommitted   Type = "import.committed"
)

// AllTypes lists every event type in emission order of a typical run
func AllTypes() []Type {
	return []Type{
		TypeRunStarted,
		TypeStageCompleted,
		TypeCorrectionApplied,
		TypeRunRewound,
		TypeRunCancelled,
		TypeImportCommitted,
	}
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRunStarted,
		TypeStageCompleted,
		TypeCorrectionApplied,
		TypeRunRewound,
		TypeRunCancelled,
		TypeImportCommitted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the event closes its run
func (t Type) IsTerminal() bool {
	return t == TypeRunCancelled || t == TypeImportCommitted
}
