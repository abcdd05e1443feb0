package job

import (
	"fmt"
)

// State is a job lifecycle state.
type State string

const (
	StateCreated     State = "created"
	StateRunning     State = "running"
	StateCompleted   State = "completed"
	StateNodeDeleted State = "node_deleted"
	StateError       State = "error"
	StateCanceled    State = "canceled"
)

// Status is the externally visible state plus the diagnostic message
// captured for StateError.
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}

// Created is the status of a freshly registered job.
func Created() Status { return Status{State: StateCreated} }

// Running is the status while the engine executes a trigger.
func Running() Status { return Status{State: StateRunning} }

// Completed is the status after all selected checkers ran.
func Completed() Status { return Status{State: StateCompleted} }

// NodeDeleted is the status when the target no longer resolves.
func NodeDeleted() Status { return Status{State: StateNodeDeleted} }

// Failed is the status after an unexpected failure, carrying its message.
func Failed(msg string) Status { return Status{State: StateError, Message: msg} }

// Canceled is the terminal status after an explicit cancel.
func Canceled() Status { return Status{State: StateCanceled} }

func (s Status) String() string {
	if s.State == StateError && s.Message != "" {
		return fmt.Sprintf("%s(%s)", s.State, s.Message)
	}
	return string(s.State)
}

// IsTerminal reports whether no further transition is possible for a job of
// the given kind in this state.
func (s State) IsTerminal(kind Kind) bool {
	switch s {
	case StateCanceled:
		return true
	case StateCompleted, StateNodeDeleted, StateError:
		return kind == OneOff
	}
	return false
}

// IsSettled reports whether the state is one an execution finishes in.
func (s State) IsSettled() bool {
	switch s {
	case StateCompleted, StateNodeDeleted, StateError, StateCanceled:
		return true
	}
	return false
}

var baseTransitions = map[State][]State{
	StateCreated: {StateRunning, StateCanceled},
	StateRunning: {StateCompleted, StateNodeDeleted, StateError, StateCanceled},
	// One-off settled states are terminal; continuousTransitions overrides.
	StateCompleted:   nil,
	StateNodeDeleted: nil,
	StateError:       nil,
	StateCanceled:    nil,
}

var continuousTransitions = map[State][]State{
	StateCompleted:   {StateRunning, StateCanceled},
	StateNodeDeleted: {StateRunning, StateCanceled},
	StateError:       {StateRunning, StateCanceled},
}

// ValidateTransition returns an error if a job of the given kind may not
// move from one state to the other.
func ValidateTransition(kind Kind, from, to State) error {
	allowed := baseTransitions[from]
	if kind == Continuous {
		if extra, ok := continuousTransitions[from]; ok {
			allowed = extra
		}
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid %s job transition %s -> %s", kind, from, to)
}
