package delivery

import (
	"log/slog"
	"time"
)

// WorkerOption configures a Worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	queues          []string
	pollInterval    time.Duration
	lockTimeout     time.Duration
	shutdownTimeout time.Duration
	retryBackoff    time.Duration
	concurrency     int
	now             func() time.Time
	logger          *slog.Logger
}

// WithQueues sets the queues the worker claims from.
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		if len(queues) > 0 {
			o.queues = queues
		}
	}
}

// WithPollInterval sets how often the worker looks for due envelopes.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithLockTimeout sets how long a claim is held. It also bounds handler runs.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithShutdownTimeout bounds how long Run waits for in-flight envelopes.
func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithRetryBackoff sets the base delay between attempts. The n-th retry
// waits n times the base.
func WithRetryBackoff(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d >= 0 {
			o.retryBackoff = d
		}
	}
}

// WithConcurrency sets how many envelopes are delivered at once.
func WithConcurrency(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(o *workerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func WithWorkerLogger(log *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if log != nil {
			o.logger = log
		}
	}
}
