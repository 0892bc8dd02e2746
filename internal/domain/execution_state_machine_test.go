package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionStateMachine_Transition(t *testing.T) {
	sm := NewExecutionStateMachine()

	tests := []struct {
		name        string
		from        ExecutionState
		action      ExecutionTransition
		expectedTo  ExecutionState
		shouldError bool
	}{
		{"Running -> Completed", ExecutionStateRunning, TransitionComplete, ExecutionStateCompleted, false},
		{"Running -> Failed", ExecutionStateRunning, TransitionFail, ExecutionStateFailed, false},
		{"Completed -> Failed (terminal)", ExecutionStateCompleted, TransitionFail, ExecutionStateCompleted, true},
		{"Failed -> Completed (terminal)", ExecutionStateFailed, TransitionComplete, ExecutionStateFailed, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := sm.Transition(tc.from, tc.action)
			if tc.shouldError {
				assert.Error(t, err)
				assert.Equal(t, tc.from, next, "State should not change on invalid transition")
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedTo, next)
			}
		})
	}
}

func TestExecutionStateMachine_Queries(t *testing.T) {
	sm := NewExecutionStateMachine()

	assert.True(t, sm.CanTransition(ExecutionStateRunning, TransitionFail))
	assert.False(t, sm.CanTransition(ExecutionStateCompleted, TransitionComplete))
	assert.Len(t, sm.ValidTransitions(ExecutionStateRunning), 2)
	assert.Empty(t, sm.ValidTransitions(ExecutionStateFailed))
	assert.False(t, sm.IsTerminal(ExecutionStateRunning))
	assert.True(t, sm.IsTerminal(ExecutionStateCompleted))
	assert.Equal(t, "RUNNING", string(ExecutionStateRunning))
}
