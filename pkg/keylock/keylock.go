package keylock

import (
	"context"
	"sync"
	"time"
)

// Unlock releases a lock obtained from a Locker. It is safe to call more than once.
type Unlock func()

// Locker provides mutual exclusion scoped to a key.
// Lock blocks until the key is free or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// Config holds distributed lock settings.
type Config struct {
	TTL          time.Duration `env:"KEYLOCK_TTL" envDefault:"30s"`
	RetryDelay   time.Duration `env:"KEYLOCK_RETRY_DELAY" envDefault:"25ms"`
	KeyPrefix    string        `env:"KEYLOCK_PREFIX" envDefault:"entitlement:lock:"`
	UseRedisLock bool          `env:"KEYLOCK_REDIS" envDefault:"false"`
}

type entry struct {
	ch   chan struct{}
	refs int
}

// MemoryLocker serializes work per key within a single process.
// Entries are reference counted and removed once no goroutine holds or waits on them.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// NewMemoryLocker returns an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*entry)}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	return releaseOnce(func() {
		<-e.ch
		l.release(key, e)
	}), nil
}

// releaseOnce wraps fn so concurrent or repeated calls run it exactly once.
func releaseOnce(fn func()) Unlock {
	var once sync.Once
	return func() { once.Do(fn) }
}

// Len reports how many keys are currently tracked.
func (l *MemoryLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *MemoryLocker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
