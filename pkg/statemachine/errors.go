package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrNilState          = errors.New("statemachine: nil initial state")
	ErrInvalidTransition = errors.New("statemachine: transition needs from, to and event")
	ErrInvalidEvent      = errors.New("statemachine: nil event")

	// ErrNoTransition matches a TransitionError for an event the current
	// state has no edge for.
	ErrNoTransition = errors.New("statemachine: no transition")
	// ErrRejected matches a TransitionError whose edges were all blocked by
	// guards.
	ErrRejected = errors.New("statemachine: transition rejected by guards")
)

// TransitionError is returned by Fire when the event cannot be applied in
// the current state. Use errors.Is with ErrNoTransition or ErrRejected.
type TransitionError struct {
	From     string
	Event    string
	Rejected bool
}

func (e *TransitionError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("statemachine: %s rejected in state %s", e.Event, e.From)
	}
	return fmt.Sprintf("statemachine: no %s transition from state %s", e.Event, e.From)
}

func (e *TransitionError) Is(target error) bool {
	switch target {
	case ErrRejected:
		return e.Rejected
	case ErrNoTransition:
		return !e.Rejected
	}
	return false
}
