package entitlement

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/entitlement/pkg/keylock"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock replaces the clock used for phase scheduling.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithMetrics sets the metrics hook.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithLocker sets the per-subscription locker. Use a distributed locker when
// several processes consume the same notification source.
func WithLocker(l keylock.Locker) Option {
	return func(e *Engine) {
		if l != nil {
			e.locker = l
		}
	}
}

// WithTransitionWriter sets where phase transitions are recorded, for stores
// composed from separate reader and writer backends.
func WithTransitionWriter(w TransitionWriter) Option {
	return func(e *Engine) {
		if w != nil {
			e.transitions = w
		}
	}
}

func WithListenerTimeout(d time.Duration) Option {
	return func(e *Engine) { e.listenerTimeout = d }
}

func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) { e.lockTimeout = d }
}

// WithConfig applies the timeouts from cfg.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.listenerTimeout = cfg.ListenerTimeout
		e.lockTimeout = cfg.LockTimeout
	}
}
