package entitlement

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/entitlement/pkg/logger"
)

// Listener observes subscription lifecycle changes. Each callback receives the
// subscription's latest transition. Returned errors are logged and counted by
// the engine; they never abort processing of the event.
type Listener interface {
	SubscriptionCreated(ctx context.Context, t Transition) error
	SubscriptionChanged(ctx context.Context, t Transition) error
	SubscriptionCancelled(ctx context.Context, t Transition) error
	SubscriptionPhaseChanged(ctx context.Context, t Transition) error
}

// TransitionFunc handles a single callback.
type TransitionFunc func(ctx context.Context, t Transition) error

// ListenerFuncs adapts plain functions to Listener. Nil fields are no-ops.
type ListenerFuncs struct {
	Created      TransitionFunc
	Changed      TransitionFunc
	Cancelled    TransitionFunc
	PhaseChanged TransitionFunc
}

func (l ListenerFuncs) SubscriptionCreated(ctx context.Context, t Transition) error {
	return call(ctx, l.Created, t)
}

func (l ListenerFuncs) SubscriptionChanged(ctx context.Context, t Transition) error {
	return call(ctx, l.Changed, t)
}

func (l ListenerFuncs) SubscriptionCancelled(ctx context.Context, t Transition) error {
	return call(ctx, l.Cancelled, t)
}

func (l ListenerFuncs) SubscriptionPhaseChanged(ctx context.Context, t Transition) error {
	return call(ctx, l.PhaseChanged, t)
}

func call(ctx context.Context, fn TransitionFunc, t Transition) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, t)
}

// LogListener writes every notification to a structured logger.
type LogListener struct {
	log   *slog.Logger
	level slog.Level
}

// NewLogListener logs at info level. A nil logger uses slog.Default.
func NewLogListener(log *slog.Logger) *LogListener {
	if log == nil {
		log = slog.Default()
	}
	return &LogListener{log: log.With(logger.Component("log-listener")), level: slog.LevelInfo}
}

func (l *LogListener) SubscriptionCreated(ctx context.Context, t Transition) error {
	l.emit(ctx, "subscription created", t)
	return nil
}

func (l *LogListener) SubscriptionChanged(ctx context.Context, t Transition) error {
	l.emit(ctx, "subscription changed", t)
	return nil
}

func (l *LogListener) SubscriptionCancelled(ctx context.Context, t Transition) error {
	l.emit(ctx, "subscription cancelled", t)
	return nil
}

func (l *LogListener) SubscriptionPhaseChanged(ctx context.Context, t Transition) error {
	l.emit(ctx, "subscription phase changed", t)
	return nil
}

func (l *LogListener) emit(ctx context.Context, msg string, t Transition) {
	attrs := []slog.Attr{
		slog.String("transition", string(t.Kind)),
		logger.Group("from", logger.Plan(t.PreviousPlan), logger.Phase(t.PreviousPhase)),
		logger.Group("to", logger.Plan(t.NextPlan), logger.Phase(t.NextPhase)),
		logger.EffectiveAt(t.EffectiveAt),
	}
	// The engine's context already carries the id.
	if _, ok := logger.SubscriptionIDFromContext(ctx); !ok {
		attrs = append(attrs, logger.SubscriptionID(t.SubscriptionID))
	}
	l.log.LogAttrs(ctx, l.level, msg, attrs...)
}
