package delivery

import "time"

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithDefaultQueue sets the queue used when Publish gets none.
func WithDefaultQueue(queue string) PublisherOption {
	return func(p *Publisher) {
		if queue != "" {
			p.defaultQueue = queue
		}
	}
}

// WithDefaultMaxAttempts sets the attempts budget of new envelopes.
func WithDefaultMaxAttempts(n int16) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.defaultMaxAttempts = n
		}
	}
}

// WithPublisherClock overrides the time source for CreatedAt and delays.
func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// PublishOption configures a single Publish call.
type PublishOption func(*publishOptions)

type publishOptions struct {
	queue       string
	maxAttempts int16
	delay       time.Duration
	deliverAt   *time.Time
	dedupKey    string
}

func WithQueue(queue string) PublishOption {
	return func(o *publishOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithDeliverAt delays delivery until t. It wins over WithDelay.
func WithDeliverAt(t time.Time) PublishOption {
	return func(o *publishOptions) { o.deliverAt = &t }
}

func WithDelay(d time.Duration) PublishOption {
	return func(o *publishOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithDedupKey rejects the envelope while another pending one holds key.
// The key is released when that envelope is claimed.
func WithDedupKey(key string) PublishOption {
	return func(o *publishOptions) { o.dedupKey = key }
}

// WithMaxAttempts caps delivery attempts, 1 to 20.
func WithMaxAttempts(n int16) PublishOption {
	return func(o *publishOptions) {
		if n > 0 && n <= 20 {
			o.maxAttempts = n
		}
	}
}
