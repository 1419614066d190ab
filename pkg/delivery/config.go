package delivery

import "time"

// Config holds delivery worker and publisher settings.
type Config struct {
	Queue           string        `env:"DELIVERY_QUEUE" envDefault:"entitlement"`
	PollInterval    time.Duration `env:"DELIVERY_POLL_INTERVAL" envDefault:"1s"`
	LockTimeout     time.Duration `env:"DELIVERY_LOCK_TIMEOUT" envDefault:"1m"`
	ShutdownTimeout time.Duration `env:"DELIVERY_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	Concurrency     int           `env:"DELIVERY_CONCURRENCY" envDefault:"4"`
	MaxAttempts     int16         `env:"DELIVERY_MAX_ATTEMPTS" envDefault:"5"`
	RetryBackoff    time.Duration `env:"DELIVERY_RETRY_BACKOFF" envDefault:"30s"`
}

// WorkerOptions converts cfg to worker options.
func (cfg Config) WorkerOptions() []WorkerOption {
	return []WorkerOption{
		WithQueues(cfg.Queue),
		WithPollInterval(cfg.PollInterval),
		WithLockTimeout(cfg.LockTimeout),
		WithShutdownTimeout(cfg.ShutdownTimeout),
		WithConcurrency(cfg.Concurrency),
		WithRetryBackoff(cfg.RetryBackoff),
	}
}

// PublisherOptions converts cfg to publisher options.
func (cfg Config) PublisherOptions() []PublisherOption {
	return []PublisherOption{
		WithDefaultQueue(cfg.Queue),
		WithDefaultMaxAttempts(cfg.MaxAttempts),
	}
}
