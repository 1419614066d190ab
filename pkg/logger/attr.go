package logger

import (
	"log/slog"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error records err under "error". Nil errors produce an empty Attr,
// which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// SubscriptionID records the subscription under "subscription_id".
func SubscriptionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("subscription_id", id)
}

// EventID records the event under "event_id".
func EventID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("event_id", id)
}

func EventKind(kind string) slog.Attr {
	return slog.String("event_kind", kind)
}

func Action(action string) slog.Attr {
	return slog.String("action", action)
}

func Plan(name string) slog.Attr {
	return slog.String("plan", name)
}

func Phase(name string) slog.Attr {
	return slog.String("phase", name)
}

// EffectiveAt records a timestamp under "effective_at" in RFC 3339.
func EffectiveAt(t time.Time) slog.Attr {
	return slog.String("effective_at", t.UTC().Format(time.RFC3339))
}

func Listener(index int) slog.Attr {
	return slog.Int("listener", index)
}

func Callback(name string) slog.Attr {
	return slog.String("callback", name)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}
