package domain

import (
	"fmt"

	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

// ExecutionState is the status of a workflow execution or of one of its action logs
type ExecutionState string

const (
	ExecutionStateRunning   ExecutionState = constants.ExecutionRunning
	ExecutionStateCompleted ExecutionState = constants.ExecutionCompleted
	ExecutionStateFailed    ExecutionState = constants.ExecutionFailed
)

// ExecutionTransition is an event that moves an execution between states
type ExecutionTransition string

const (
	TransitionComplete ExecutionTransition = "Complete"
	TransitionFail     ExecutionTransition = "Fail"
)

// ExecutionStateMachine enforces valid state transitions for workflow runs.
// Invalid transitions return an error.
type ExecutionStateMachine struct {
	transitions map[stateTransitionKey]ExecutionState
}

type stateTransitionKey struct {
	state      ExecutionState
	transition ExecutionTransition
}

// NewExecutionStateMachine creates a state machine with the execution lifecycle:
//
//	[Running] ──Complete──► [Completed]
//	    │
//	    └──────Fail──────► [Failed]
//
// Executions are created in Running; Completed and Failed are terminal.
func NewExecutionStateMachine() *ExecutionStateMachine {
	sm := &ExecutionStateMachine{
		transitions: make(map[stateTransitionKey]ExecutionState),
	}
	sm.addTransition(ExecutionStateRunning, TransitionComplete, ExecutionStateCompleted)
	sm.addTransition(ExecutionStateRunning, TransitionFail, ExecutionStateFailed)
	return sm
}

func (sm *ExecutionStateMachine) addTransition(from ExecutionState, via ExecutionTransition, to ExecutionState) {
	sm.transitions[stateTransitionKey{state: from, transition: via}] = to
}

// Transition returns the next state or an error if the transition is invalid
func (sm *ExecutionStateMachine) Transition(current ExecutionState, action ExecutionTransition) (ExecutionState, error) {
	next, ok := sm.transitions[stateTransitionKey{state: current, transition: action}]
	if !ok {
		return current, fmt.Errorf("invalid execution transition: cannot %s from %s", action, current)
	}
	return next, nil
}

// CanTransition checks if a transition is valid without performing it
func (sm *ExecutionStateMachine) CanTransition(current ExecutionState, action ExecutionTransition) bool {
	_, ok := sm.transitions[stateTransitionKey{state: current, transition: action}]
	return ok
}

// ValidTransitions returns all valid transitions from the given state
func (sm *ExecutionStateMachine) ValidTransitions(state ExecutionState) []ExecutionTransition {
	var result []ExecutionTransition
	for key := range sm.transitions {
		if key.state == state {
			result = append(result, key.transition)
		}
	}
	return result
}

// IsTerminal returns true if no further transitions exist
func (sm *ExecutionStateMachine) IsTerminal(state ExecutionState) bool {
	return state == ExecutionStateCompleted || state == ExecutionStateFailed
}
