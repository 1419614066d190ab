package keylock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only if it still holds our token,
// so an expired lock re-acquired by another process is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes work per key across processes sharing a Redis instance.
// The lock expires after TTL so a crashed holder cannot block a key forever;
// TTL must exceed the longest expected critical section.
type RedisLocker struct {
	client     redis.UniversalClient
	ttl        time.Duration
	retryDelay time.Duration
	prefix     string
	logger     *slog.Logger
}

// RedisOption configures a RedisLocker.
type RedisOption func(*RedisLocker)

// WithTTL sets how long a lock is held before Redis expires it.
func WithTTL(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.ttl = d
		}
	}
}

// WithRetryDelay sets the polling interval while waiting for a held lock.
func WithRetryDelay(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.retryDelay = d
		}
	}
}

// WithKeyPrefix namespaces lock keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) {
		l.prefix = prefix
	}
}

// WithLogger sets the logger used to report unlock failures.
func WithLogger(logger *slog.Logger) RedisOption {
	return func(l *RedisLocker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewRedisLocker creates a Redis-backed locker. Panics if client is nil.
func NewRedisLocker(client redis.UniversalClient, opts ...RedisOption) *RedisLocker {
	if client == nil {
		panic("keylock: redis client is required")
	}
	l := &RedisLocker{
		client:     client,
		ttl:        30 * time.Second,
		retryDelay: 25 * time.Millisecond,
		prefix:     "entitlement:lock:",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewRedisLockerFromConfig builds a RedisLocker from Config.
func NewRedisLockerFromConfig(client redis.UniversalClient, cfg Config, opts ...RedisOption) *RedisLocker {
	base := []RedisOption{
		WithTTL(cfg.TTL),
		WithRetryDelay(cfg.RetryDelay),
		WithKeyPrefix(cfg.KeyPrefix),
	}
	return NewRedisLocker(client, append(base, opts...)...)
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryDelay)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Join(ErrLockFailed, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	return releaseOnce(func() {
		// Background context: unlocking must happen even when the caller's ctx is done.
		ctx, cancel := context.WithTimeout(context.Background(), l.ttl)
		defer cancel()
		if err := unlockScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.ErrorContext(ctx, "failed to release lock",
				slog.String("key", redisKey),
				slog.String("error", err.Error()))
		}
	}), nil
}
