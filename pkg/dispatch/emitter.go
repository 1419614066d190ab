package dispatch

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/entitlement/pkg/delivery"
	"github.com/dmitrymomot/entitlement/pkg/entitlement"
)

// Emitter publishes API events recorded by the subscription API so the
// engine receives them through the same delivery path as phase events.
type Emitter struct {
	pub Publisher
}

func NewEmitter(pub Publisher) (*Emitter, error) {
	if pub == nil {
		return nil, ErrPublisherNil
	}
	return &Emitter{pub: pub}, nil
}

// Emit publishes ev for delivery at its effective time.
func (e *Emitter) Emit(ctx context.Context, ev entitlement.APIEvent) error {
	if !ev.Action.Valid() {
		return fmt.Errorf("%w: %q", entitlement.ErrUnknownAction, ev.Action)
	}

	data, err := entitlement.EncodeEvent(ev)
	if err != nil {
		return err
	}
	if _, err := e.pub.Publish(ctx, Topic, data, delivery.WithDeliverAt(ev.EffectiveAt)); err != nil {
		return fmt.Errorf("emit %s event for %s: %w", ev.Action, ev.SubscriptionID, err)
	}
	return nil
}
