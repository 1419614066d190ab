package delivery

import (
	"context"
	"encoding/json"
)

// Handler consumes the payloads of one topic. A returned error schedules a
// retry until the envelope runs out of attempts.
type Handler interface {
	Topic() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// RawHandler returns a Handler passing the payload through undecoded.
func RawHandler(topic string, fn func(ctx context.Context, payload json.RawMessage) error) Handler {
	return rawHandler{topic: topic, fn: fn}
}

type rawHandler struct {
	topic string
	fn    func(ctx context.Context, payload json.RawMessage) error
}

func (h rawHandler) Topic() string { return h.topic }

func (h rawHandler) Handle(ctx context.Context, payload json.RawMessage) error {
	return h.fn(ctx, payload)
}
