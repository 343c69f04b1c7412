package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerParse     Trigger = "PARSE"
	TriggerMap       Trigger = "MAP"
	TriggerMatch     Trigger = "MATCH"
	TriggerNormalize Trigger = "NORMALIZE"
	TriggerValidate  Trigger = "VALIDATE"
	TriggerCommit    Trigger = "COMMIT"
	TriggerCancel    Trigger = "CANCEL"
)

const rewindPrefix = "REWIND_TO_"

// RewindTrigger returns the trigger that moves a run back to target
func RewindTrigger(target State) Trigger {
	return Trigger(rewindPrefix + string(target))
}

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// IsRewind reports whether the trigger moves a run backwards
func (t Trigger) IsRewind() bool {
	return len(t) > len(rewindPrefix) && string(t[:len(rewindPrefix)]) == rewindPrefix
}
