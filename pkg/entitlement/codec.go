package entitlement

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventEnvelope is the JSON wire form of an Event used by the delivery layer.
type EventEnvelope struct {
	ID             uuid.UUID  `json:"id"`
	Kind           EventKind  `json:"kind"`
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	Action         APIAction  `json:"action,omitempty"`
	Plan           string     `json:"plan,omitempty"`
	Phase          string     `json:"phase,omitempty"`
	EffectiveAt    time.Time  `json:"effective_at"`
	RequestedAt    *time.Time `json:"requested_at,omitempty"`
}

// ToEnvelope converts e to its wire form.
func ToEnvelope(e Event) (EventEnvelope, error) {
	switch ev := e.(type) {
	case APIEvent:
		env := EventEnvelope{
			ID:             ev.EventID,
			Kind:           KindAPI,
			SubscriptionID: ev.SubscriptionID,
			Action:         ev.Action,
			EffectiveAt:    ev.EffectiveAt,
		}
		if !ev.RequestedAt.IsZero() {
			at := ev.RequestedAt
			env.RequestedAt = &at
		}
		return env, nil
	case PhaseEvent:
		return EventEnvelope{
			ID:             ev.EventID,
			Kind:           KindPhase,
			SubscriptionID: ev.SubscriptionID,
			Plan:           ev.Plan,
			Phase:          ev.Phase,
			EffectiveAt:    ev.EffectiveAt,
		}, nil
	case nil:
		return EventEnvelope{}, ErrInvalidEvent
	default:
		return EventEnvelope{}, fmt.Errorf("%w: %T", ErrUnknownEventKind, e)
	}
}

// Event converts the envelope back to a typed Event.
func (env EventEnvelope) Event() (Event, error) {
	if env.SubscriptionID == uuid.Nil {
		return nil, errors.Join(ErrInvalidEvent, errors.New("missing subscription id"))
	}

	switch env.Kind {
	case KindAPI:
		if !env.Action.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
		}
		ev := APIEvent{
			EventID:        env.ID,
			SubscriptionID: env.SubscriptionID,
			Action:         env.Action,
			EffectiveAt:    env.EffectiveAt,
		}
		if env.RequestedAt != nil {
			ev.RequestedAt = *env.RequestedAt
		}
		return ev, nil
	case KindPhase:
		return PhaseEvent{
			EventID:        env.ID,
			SubscriptionID: env.SubscriptionID,
			Plan:           env.Plan,
			Phase:          env.Phase,
			EffectiveAt:    env.EffectiveAt,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, env.Kind)
	}
}

// EncodeEvent marshals e as an EventEnvelope.
func EncodeEvent(e Event) ([]byte, error) {
	env, err := ToEnvelope(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// DecodeEvent parses data produced by EncodeEvent.
func DecodeEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Join(ErrInvalidEvent, err)
	}
	return env.Event()
}
