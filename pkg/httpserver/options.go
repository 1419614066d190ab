package httpserver

import (
	"log/slog"
	"time"
)

// Option configures the HTTP server. Empty or non-positive values leave the
// default in place, so options can be built straight from Config.
type Option func(*config)

func WithAddr(addr string) Option {
	return func(c *config) {
		if addr != "" {
			c.addr = addr
		}
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(c *config) { setDuration(&c.readTimeout, d) }
}

// WithWriteTimeout bounds a response. Keep it above the readiness check
// timeout or slow probes are cut off mid-write.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) { setDuration(&c.writeTimeout, d) }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(c *config) { setDuration(&c.idleTimeout, d) }
}

// WithShutdownTimeout bounds graceful shutdown once the run context ends.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *config) { setDuration(&c.shutdownTimeout, d) }
}

// WithLogger sets the logger. Nil discards output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func setDuration(dst *time.Duration, d time.Duration) {
	if d > 0 {
		*dst = d
	}
}
