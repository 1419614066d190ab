package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PublisherRepository stores new envelopes. Insert must fail with an error
// wrapping ErrDuplicate when a pending envelope holds the same dedup key.
// DeletePending removes the pending envelope holding dedupKey and reports
// whether one existed; claimed envelopes are left alone.
type PublisherRepository interface {
	Insert(ctx context.Context, env *Envelope) error
	DeletePending(ctx context.Context, dedupKey string) (bool, error)
}

// Publisher creates envelopes for later delivery.
type Publisher struct {
	repo               PublisherRepository
	defaultQueue       string
	defaultMaxAttempts int16
	now                func() time.Time
}

// NewPublisher creates a Publisher.
func NewPublisher(repo PublisherRepository, opts ...PublisherOption) (*Publisher, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	p := &Publisher{
		repo:               repo,
		defaultQueue:       DefaultQueueName,
		defaultMaxAttempts: 5,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish stores payload for delivery to the handler of topic. Byte slices
// and json.RawMessage are stored as-is; other values are JSON encoded.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any, opts ...PublishOption) (*Envelope, error) {
	if topic == "" {
		return nil, ErrTopicEmpty
	}
	if payload == nil {
		return nil, ErrPayloadNil
	}

	o := &publishOptions{
		queue:       p.defaultQueue,
		maxAttempts: p.defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(o)
	}

	data, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	now := p.now()
	deliverAt := now
	switch {
	case o.deliverAt != nil:
		deliverAt = *o.deliverAt
	case o.delay > 0:
		deliverAt = now.Add(o.delay)
	}

	env := &Envelope{
		ID:          uuid.New(),
		Queue:       o.queue,
		Topic:       topic,
		Payload:     data,
		Status:      StatusPending,
		MaxAttempts: o.maxAttempts,
		DeliverAt:   deliverAt,
		CreatedAt:   now,
	}
	if o.dedupKey != "" {
		env.DedupKey = stringPtr(o.dedupKey)
	}

	if err := p.repo.Insert(ctx, env); err != nil {
		return nil, fmt.Errorf("publish %q to queue %q: %w", topic, env.Queue, err)
	}
	return env, nil
}

// Withdraw removes the pending envelope published with dedupKey, so a
// replacement can be published under the same key. It reports whether an
// envelope was removed.
func (p *Publisher) Withdraw(ctx context.Context, dedupKey string) (bool, error) {
	if dedupKey == "" {
		return false, nil
	}
	removed, err := p.repo.DeletePending(ctx, dedupKey)
	if err != nil {
		return false, fmt.Errorf("withdraw %s: %w", dedupKey, err)
	}
	return removed, nil
}

func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload of type %T: %w", payload, err)
	}
	return data, nil
}
