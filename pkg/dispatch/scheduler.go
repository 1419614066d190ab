package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlement/pkg/delivery"
	"github.com/dmitrymomot/entitlement/pkg/entitlement"
)

// Scheduler persists phase events as delayed envelopes. It implements
// entitlement.PhaseEventWriter.
type Scheduler struct {
	pub Publisher
}

func NewScheduler(pub Publisher) (*Scheduler, error) {
	if pub == nil {
		return nil, ErrPublisherNil
	}
	return &Scheduler{pub: pub}, nil
}

// CreateNextPhaseEvent publishes ev for delivery at its effective time. A
// pending phase event for the same subscription yields an error wrapping
// entitlement.ErrAlreadyScheduled.
func (s *Scheduler) CreateNextPhaseEvent(ctx context.Context, subscriptionID uuid.UUID, ev entitlement.PhaseEvent) error {
	data, err := entitlement.EncodeEvent(ev)
	if err != nil {
		return err
	}

	_, err = s.pub.Publish(ctx, Topic, data,
		delivery.WithDeliverAt(ev.EffectiveAt),
		delivery.WithDedupKey(PhaseDedupKey(subscriptionID)),
	)
	if errors.Is(err, delivery.ErrDuplicate) {
		return fmt.Errorf("%w: subscription %s", entitlement.ErrAlreadyScheduled, subscriptionID)
	}
	if err != nil {
		return fmt.Errorf("schedule phase event for %s: %w", subscriptionID, err)
	}
	return nil
}

// CancelNextPhaseEvent withdraws the pending phase event of a subscription.
// An event already claimed by a worker is not affected.
func (s *Scheduler) CancelNextPhaseEvent(ctx context.Context, subscriptionID uuid.UUID) error {
	if _, err := s.pub.Withdraw(ctx, PhaseDedupKey(subscriptionID)); err != nil {
		return fmt.Errorf("cancel phase event for %s: %w", subscriptionID, err)
	}
	return nil
}
