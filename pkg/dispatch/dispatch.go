package dispatch

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlement/pkg/delivery"
)

// Topic is the delivery topic carrying encoded entitlement events.
const Topic = "entitlement.event"

var (
	ErrPublisherNil = errors.New("dispatch: publisher cannot be nil")
	ErrConsumerNil  = errors.New("dispatch: consumer cannot be nil")
	ErrNotStarted   = errors.New("dispatch: notifications not started")
	ErrStarted      = errors.New("dispatch: notifications already started")
)

// PhaseDedupKey is the dedup key shared by all pending phase events of a
// subscription.
func PhaseDedupKey(subscriptionID uuid.UUID) string {
	return "phase/" + subscriptionID.String()
}

// Publisher is satisfied by *delivery.Publisher.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any, opts ...delivery.PublishOption) (*delivery.Envelope, error)
	Withdraw(ctx context.Context, dedupKey string) (bool, error)
}

// Consumer is satisfied by *delivery.Worker.
type Consumer interface {
	RegisterHandlers(handlers ...delivery.Handler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
