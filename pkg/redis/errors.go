package redis

import "errors"

var (
	// ErrNoURL is returned by Connect when REDIS_URL is unset.
	ErrNoURL = errors.New("redis: connection url is empty")
	// ErrBadURL wraps the parse error for a malformed REDIS_URL.
	ErrBadURL = errors.New("redis: invalid connection url")
	// ErrUnavailable means every connect attempt failed before the deadline.
	ErrUnavailable = errors.New("redis: server unavailable")
	// ErrNotWritable is reported by Healthcheck when the lock store rejects
	// writes, for example on a read-only replica.
	ErrNotWritable = errors.New("redis: lock store is not writable")
)
