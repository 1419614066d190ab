package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlement/pkg/catalog"
)

// SubscriptionReader looks up subscriptions. Unknown ids must yield an error
// wrapping ErrSubscriptionNotFound.
type SubscriptionReader interface {
	GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error)
}

// PhaseEventWriter persists scheduled phase events. A subscription has at
// most one pending phase event; a second insert must fail with an error
// wrapping ErrAlreadyScheduled. CancelNextPhaseEvent removes the pending
// event, if any, and is a no-op otherwise.
type PhaseEventWriter interface {
	CreateNextPhaseEvent(ctx context.Context, subscriptionID uuid.UUID, event PhaseEvent) error
	CancelNextPhaseEvent(ctx context.Context, subscriptionID uuid.UUID) error
}

// TransitionWriter records transitions the engine derives itself, such as a
// phase becoming effective when its phase event is delivered.
type TransitionWriter interface {
	AppendTransition(ctx context.Context, subscriptionID uuid.UUID, t Transition) error
}

// Store is the full entitlement store the engine depends on.
type Store interface {
	SubscriptionReader
	PhaseEventWriter
}

type composedStore struct {
	SubscriptionReader
	PhaseEventWriter
}

// ComposeStore joins a reader and a writer backed by different systems,
// e.g. a Postgres repository and a delivery queue.
func ComposeStore(r SubscriptionReader, w PhaseEventWriter) Store {
	if r == nil || w == nil {
		panic("entitlement: ComposeStore requires reader and writer")
	}
	return composedStore{SubscriptionReader: r, PhaseEventWriter: w}
}

// EventSink receives ready events from a NotificationSource.
type EventSink interface {
	ProcessEventReady(ctx context.Context, event Event) error
}

// NotificationSource delivers ready events to a sink between
// StartNotifications and StopNotifications. An error returned by the sink
// signals the source to redeliver.
type NotificationSource interface {
	StartNotifications(ctx context.Context, sink EventSink) error
	StopNotifications(ctx context.Context) error
}

// PlanAligner computes the next time-driven phase of a subscription.
// A nil TimedPhase with a nil error means the plan has no further phase.
type PlanAligner interface {
	Prime(cat *catalog.Catalog) error
	NextTimedPhase(ctx context.Context, sub *Subscription, plan string, now, planStart time.Time) (*TimedPhase, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
