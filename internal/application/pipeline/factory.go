package pipeline

import (
	domainwf "github.com/garyjia/bid-reconciler/internal/domain/workflow"
)

// BuildRunStateMachine creates the state machine for one import run.
// mappingValid guards the MAPPED -> MATCHED transition.
func BuildRunStateMachine(initialState domainwf.State, mappingValid domainwf.GuardFunc) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateIdle).
		Permit(domainwf.TriggerParse, domainwf.StateParsed)

	builder.Configure(domainwf.StateParsed).
		Permit(domainwf.TriggerMap, domainwf.StateMapped)

	// MAP re-enters MAPPED when the user edits the mapping
	builder.Configure(domainwf.StateMapped).
		Permit(domainwf.TriggerMap, domainwf.StateMapped).
		PermitIf(domainwf.TriggerMatch, domainwf.StateMatched, mappingValid)

	builder.Configure(domainwf.StateMatched).
		Permit(domainwf.TriggerNormalize, domainwf.StateNormalized)

	builder.Configure(domainwf.StateNormalized).
		Permit(domainwf.TriggerValidate, domainwf.StateValidated)

	builder.Configure(domainwf.StateValidated).
		Permit(domainwf.TriggerCommit, domainwf.StateImported)

	// Every non-terminal state can be cancelled or rewound to an earlier stage
	forward := domainwf.ForwardStates()
	for i, state := range forward {
		config := builder.Configure(state).
			Permit(domainwf.TriggerCancel, domainwf.StateCancelled)
		for _, target := range forward[:i] {
			config.Permit(domainwf.RewindTrigger(target), target)
		}
	}

	// IMPORTED and CANCELLED are terminal states - no outgoing transitions

	return builder.Build(initialState)
}
