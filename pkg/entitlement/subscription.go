package entitlement

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// TransitionKind names the kind of change a Transition records.
type TransitionKind string

const (
	TransitionCreate TransitionKind = "create"
	TransitionChange TransitionKind = "change"
	TransitionCancel TransitionKind = "cancel"
	TransitionPhase  TransitionKind = "phase"
)

// Transition is one recorded change of a subscription's plan or phase.
type Transition struct {
	SubscriptionID uuid.UUID
	Kind           TransitionKind
	PreviousPlan   string
	PreviousPhase  string
	NextPlan       string
	NextPhase      string
	EffectiveAt    time.Time
	RequestedAt    time.Time
}

// Subscription is a customer's instance of a catalog plan.
// Transitions are ordered by non-decreasing EffectiveAt; the last one is the latest.
type Subscription struct {
	ID               uuid.UUID
	BundleID         uuid.UUID
	Category         string
	CurrentPlan      string
	CurrentPhase     string
	CurrentPlanStart time.Time
	StartDate        time.Time
	Transitions      []Transition
}

// LatestTransition returns the last transition, if any.
func (s *Subscription) LatestTransition() (Transition, bool) {
	if s == nil || len(s.Transitions) == 0 {
		return Transition{}, false
	}
	return s.Transitions[len(s.Transitions)-1], true
}

// AppendTransition records t and moves the current plan and phase to t's
// target. Cancellations keep the plan but clear the phase.
func (s *Subscription) AppendTransition(t Transition) error {
	if latest, ok := s.LatestTransition(); ok && t.EffectiveAt.Before(latest.EffectiveAt) {
		return fmt.Errorf("%w: %s before %s", ErrTransitionOutOfOrder,
			t.EffectiveAt.Format(time.RFC3339), latest.EffectiveAt.Format(time.RFC3339))
	}

	if t.SubscriptionID == uuid.Nil {
		t.SubscriptionID = s.ID
	}
	s.Transitions = append(s.Transitions, t)

	switch t.Kind {
	case TransitionCreate, TransitionChange:
		if t.NextPlan != s.CurrentPlan || s.CurrentPlanStart.IsZero() {
			s.CurrentPlanStart = t.EffectiveAt
		}
		s.CurrentPlan, s.CurrentPhase = t.NextPlan, t.NextPhase
		if s.StartDate.IsZero() {
			s.StartDate = t.EffectiveAt
		}
	case TransitionPhase:
		s.CurrentPhase = t.NextPhase
	case TransitionCancel:
		s.CurrentPhase = ""
	}
	return nil
}

// ValidateTransitions checks the ordering invariant.
func (s *Subscription) ValidateTransitions() error {
	for i := 1; i < len(s.Transitions); i++ {
		if s.Transitions[i].EffectiveAt.Before(s.Transitions[i-1].EffectiveAt) {
			return fmt.Errorf("%w: index %d", ErrTransitionOutOfOrder, i)
		}
	}
	return nil
}

// IsActive reports whether the latest transition is not a cancellation.
func (s *Subscription) IsActive() bool {
	latest, ok := s.LatestTransition()
	return ok && latest.Kind != TransitionCancel
}

// Clone returns a deep copy.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.Transitions = slices.Clone(s.Transitions)
	return &c
}
