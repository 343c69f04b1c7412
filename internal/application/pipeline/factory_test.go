package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainwf "github.com/garyjia/bid-reconciler/internal/domain/workflow"
)

func alwaysValid(context.Context) bool { return true }

func TestBuildRunStateMachine_ForwardPath(t *testing.T) {
	machine := BuildRunStateMachine(domainwf.StateIdle, alwaysValid)

	steps := []struct {
		trigger domainwf.Trigger
		want    domainwf.State
	}{
		{domainwf.TriggerParse, domainwf.StateParsed},
		{domainwf.TriggerMap, domainwf.StateMapped},
		{domainwf.TriggerMap, domainwf.StateMapped},
		{domainwf.TriggerMatch, domainwf.StateMatched},
		{domainwf.TriggerNormalize, domainwf.StateNormalized},
		{domainwf.TriggerValidate, domainwf.StateValidated},
		{domainwf.TriggerCommit, domainwf.StateImported},
	}

	for _, step := range steps {
		require.NoError(t, machine.Fire(context.Background(), step.trigger), "fire %s", step.trigger)
		assert.Equal(t, step.want, machine.State())
	}
	assert.Empty(t, machine.PermittedTriggers())
}

func TestBuildRunStateMachine_MatchGuard(t *testing.T) {
	machine := BuildRunStateMachine(domainwf.StateMapped, func(context.Context) bool { return false })

	assert.True(t, machine.CanFire(domainwf.TriggerMatch))
	err := machine.Fire(context.Background(), domainwf.TriggerMatch)
	assert.ErrorIs(t, err, domainwf.ErrGuardFailed)
	assert.Equal(t, domainwf.StateMapped, machine.State())
}

func TestBuildRunStateMachine_CancelAndRewind(t *testing.T) {
	forward := domainwf.ForwardStates()
	for i, state := range forward {
		t.Run(state.String(), func(t *testing.T) {
			machine := BuildRunStateMachine(state, alwaysValid)
			assert.True(t, machine.CanFire(domainwf.TriggerCancel))

			for j, target := range forward {
				assert.Equal(t, j < i, machine.CanFire(domainwf.RewindTrigger(target)),
					"rewind %s -> %s", state, target)
			}

			require.NoError(t, machine.Fire(context.Background(), domainwf.TriggerCancel))
			assert.Equal(t, domainwf.StateCancelled, machine.State())
		})
	}
}

func TestBuildRunStateMachine_NoSkipping(t *testing.T) {
	machine := BuildRunStateMachine(domainwf.StateParsed, alwaysValid)

	for _, trigger := range []domainwf.Trigger{domainwf.TriggerMatch, domainwf.TriggerNormalize, domainwf.TriggerCommit} {
		assert.False(t, machine.CanFire(trigger), "trigger %s", trigger)
	}
}
