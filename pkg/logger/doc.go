// Package logger builds *slog.Logger instances with functional options and
// injects request-scoped values from context.Context into every record.
//
// New selects a text or JSON handler, applies static attributes and wraps the
// result in a handler that runs the registered ContextExtractor callbacks on
// each record. The subscription id stored with
// WithSubscriptionID is always extracted, so logs emitted anywhere below the
// engine's per-event context carry "subscription_id" without threading it
// through every call.
//
// # Usage
//
//	log := logger.New(logger.WithEnvironment("production", "entitlementd"))
//	logger.SetAsDefault(log)
//
//	ctx = logger.WithSubscriptionID(ctx, sub.ID)
//	log.InfoContext(ctx, "phase scheduled",
//		logger.Phase(next.Phase),
//		logger.EffectiveAt(next.EffectiveAt),
//	)
//
// NewFromConfig reads the same settings from a Config populated by
// pkg/config (APP_ENV, SERVICE_NAME, LOG_LEVEL, LOG_FORMAT).
//
// Attribute helpers such as Error and SubscriptionID return an empty Attr for
// nil input, so they can be passed unconditionally.
package logger
