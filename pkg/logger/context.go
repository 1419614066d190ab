package logger

import (
	"context"
	"log/slog"
)

type subscriptionIDKey struct{}

// WithSubscriptionID stores the subscription id in ctx so every record
// logged with that context carries "subscription_id".
func WithSubscriptionID(ctx context.Context, id any) context.Context {
	return context.WithValue(ctx, subscriptionIDKey{}, id)
}

// SubscriptionIDFromContext returns the id stored by WithSubscriptionID.
func SubscriptionIDFromContext(ctx context.Context) (any, bool) {
	v := ctx.Value(subscriptionIDKey{})
	return v, v != nil
}

func subscriptionIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if v, ok := SubscriptionIDFromContext(ctx); ok {
		return SubscriptionID(v), true
	}
	return slog.Attr{}, false
}
