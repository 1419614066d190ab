package entitlement

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu            sync.RWMutex
	subscriptions map[uuid.UUID]*Subscription
	pending       map[uuid.UUID]PhaseEvent
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[uuid.UUID]*Subscription),
		pending:       make(map[uuid.UUID]PhaseEvent),
	}
}

// PutSubscription inserts or replaces sub after validating its transitions.
func (s *MemoryStore) PutSubscription(sub *Subscription) error {
	if err := sub.ValidateTransitions(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.ID] = sub.Clone()
	return nil
}

// CreateSubscription stores a new subscription.
func (s *MemoryStore) CreateSubscription(_ context.Context, sub *Subscription) error {
	if err := sub.ValidateTransitions(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[sub.ID]; ok {
		return fmt.Errorf("%w: %s", ErrSubscriptionExists, sub.ID)
	}
	s.subscriptions[sub.ID] = sub.Clone()
	return nil
}

// AppendTransition records t on the stored subscription.
func (s *MemoryStore) AppendTransition(_ context.Context, id uuid.UUID, t Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id)
	}
	return sub.AppendTransition(t)
}

func (s *MemoryStore) GetSubscription(_ context.Context, id uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id)
	}
	return sub.Clone(), nil
}

// CreateNextPhaseEvent keeps at most one pending event per subscription.
func (s *MemoryStore) CreateNextPhaseEvent(_ context.Context, subscriptionID uuid.UUID, event PhaseEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pending[subscriptionID]; ok {
		return fmt.Errorf("%w: %s pending for %s", ErrAlreadyScheduled, existing.Phase, subscriptionID)
	}
	event.SubscriptionID = subscriptionID
	s.pending[subscriptionID] = event
	return nil
}

// CancelNextPhaseEvent drops the pending event of a subscription.
func (s *MemoryStore) CancelNextPhaseEvent(_ context.Context, subscriptionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, subscriptionID)
	return nil
}

// ConsumePhaseEvent removes and returns the pending event of a subscription,
// as the notification layer does when delivering it.
func (s *MemoryStore) ConsumePhaseEvent(subscriptionID uuid.UUID) (PhaseEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.pending[subscriptionID]
	if ok {
		delete(s.pending, subscriptionID)
	}
	return ev, ok
}

// PendingPhaseEvents lists pending events ordered by effective time.
func (s *MemoryStore) PendingPhaseEvents() []PhaseEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PhaseEvent, 0, len(s.pending))
	for _, ev := range s.pending {
		out = append(out, ev)
	}
	slices.SortFunc(out, func(a, b PhaseEvent) int {
		return a.EffectiveAt.Compare(b.EffectiveAt)
	})
	return out
}
