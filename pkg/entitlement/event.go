package entitlement

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind distinguishes user-initiated events from time-driven ones.
type EventKind string

const (
	KindAPI   EventKind = "api"
	KindPhase EventKind = "phase"
)

// APIAction is the closed set of user-initiated actions.
type APIAction string

const (
	ActionCreate APIAction = "create"
	ActionChange APIAction = "change"
	ActionCancel APIAction = "cancel"
)

// Valid reports whether a is one of the known actions.
func (a APIAction) Valid() bool {
	switch a {
	case ActionCreate, ActionChange, ActionCancel:
		return true
	}
	return false
}

// ParseAPIAction converts s to an APIAction.
func ParseAPIAction(s string) (APIAction, error) {
	a := APIAction(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// Event is a ready notification about a subscription. The set of
// implementations is closed: APIEvent and PhaseEvent.
type Event interface {
	ID() uuid.UUID
	Kind() EventKind
	Subscription() uuid.UUID
	Effective() time.Time

	sealed()
}

// APIEvent records a create, change or cancel request.
type APIEvent struct {
	EventID        uuid.UUID
	SubscriptionID uuid.UUID
	Action         APIAction
	EffectiveAt    time.Time
	RequestedAt    time.Time
}

// NewAPIEvent builds an APIEvent with a fresh id, requested now.
func NewAPIEvent(subscriptionID uuid.UUID, action APIAction, effectiveAt time.Time) APIEvent {
	return APIEvent{
		EventID:        uuid.New(),
		SubscriptionID: subscriptionID,
		Action:         action,
		EffectiveAt:    effectiveAt,
		RequestedAt:    time.Now(),
	}
}

func (e APIEvent) ID() uuid.UUID           { return e.EventID }
func (e APIEvent) Kind() EventKind         { return KindAPI }
func (e APIEvent) Subscription() uuid.UUID { return e.SubscriptionID }
func (e APIEvent) Effective() time.Time    { return e.EffectiveAt }
func (APIEvent) sealed()                   {}

// PhaseEvent is a time-driven phase transition, scheduled by the engine and
// delivered at or after EffectiveAt.
type PhaseEvent struct {
	EventID        uuid.UUID
	SubscriptionID uuid.UUID
	Plan           string
	Phase          string
	EffectiveAt    time.Time
}

// NewPhaseEvent derives the scheduled event for next.
func NewPhaseEvent(subscriptionID uuid.UUID, next TimedPhase) PhaseEvent {
	return PhaseEvent{
		EventID:        uuid.New(),
		SubscriptionID: subscriptionID,
		Plan:           next.Plan,
		Phase:          next.Phase,
		EffectiveAt:    next.EffectiveAt,
	}
}

func (e PhaseEvent) ID() uuid.UUID           { return e.EventID }
func (e PhaseEvent) Kind() EventKind         { return KindPhase }
func (e PhaseEvent) Subscription() uuid.UUID { return e.SubscriptionID }
func (e PhaseEvent) Effective() time.Time    { return e.EffectiveAt }
func (PhaseEvent) sealed()                   {}

// TimedPhase is the next phase of a plan and the moment it takes effect.
type TimedPhase struct {
	Plan        string
	Phase       string
	EffectiveAt time.Time
}
