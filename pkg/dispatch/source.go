package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/entitlement/pkg/delivery"
	"github.com/dmitrymomot/entitlement/pkg/entitlement"
	"github.com/dmitrymomot/entitlement/pkg/logger"
)

// Source feeds envelopes claimed by a Consumer to the engine. It implements
// entitlement.NotificationSource; a sink error leaves the envelope to be
// redelivered by the consumer.
type Source struct {
	consumer Consumer
	log      *slog.Logger

	mu      sync.Mutex
	sink    entitlement.EventSink
	running bool
}

// SourceOption configures a Source.
type SourceOption func(*Source)

func WithSourceLogger(log *slog.Logger) SourceOption {
	return func(s *Source) {
		if log != nil {
			s.log = log
		}
	}
}

// NewSource registers the event handler on consumer.
func NewSource(consumer Consumer, opts ...SourceOption) (*Source, error) {
	if consumer == nil {
		return nil, ErrConsumerNil
	}
	s := &Source{consumer: consumer, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("dispatch"))
	consumer.RegisterHandlers(delivery.RawHandler(Topic, s.handle))
	return s, nil
}

// StartNotifications starts the consumer and routes its events to sink.
func (s *Source) StartNotifications(ctx context.Context, sink entitlement.EventSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrStarted
	}
	s.sink = sink
	if err := s.consumer.Start(ctx); err != nil {
		s.sink = nil
		return fmt.Errorf("start event consumer: %w", err)
	}
	s.running = true
	return nil
}

// StopNotifications stops the consumer and waits for in-flight events.
func (s *Source) StopNotifications(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.running = false
	s.mu.Unlock()

	if err := s.consumer.Stop(ctx); err != nil {
		return fmt.Errorf("stop event consumer: %w", err)
	}
	return nil
}

func (s *Source) handle(ctx context.Context, payload json.RawMessage) error {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink == nil {
		return ErrNotStarted
	}

	ev, err := entitlement.DecodeEvent(payload)
	if err != nil {
		s.log.ErrorContext(ctx, "undecodable event envelope", logger.Error(err))
		return err
	}
	return sink.ProcessEventReady(ctx, ev)
}
