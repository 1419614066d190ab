package delivery

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements PublisherRepository and WorkerRepository in
// memory, for tests and single-process runs.
type MemoryStorage struct {
	mu          sync.Mutex
	envelopes   map[uuid.UUID]*Envelope
	order       []uuid.UUID
	pendingKeys map[string]uuid.UUID
	deadLetters []DeadLetter
	now         func() time.Time
}

// MemoryStorageOption configures a MemoryStorage.
type MemoryStorageOption func(*MemoryStorage)

// WithStorageClock overrides the time source used for due and lock checks.
func WithStorageClock(now func() time.Time) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if now != nil {
			ms.now = now
		}
	}
}

func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		envelopes:   make(map[uuid.UUID]*Envelope),
		pendingKeys: make(map[string]uuid.UUID),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// Insert implements PublisherRepository.
func (ms *MemoryStorage) Insert(_ context.Context, env *Envelope) error {
	if env == nil {
		return ErrPayloadNil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.envelopes[env.ID]; ok {
		return fmt.Errorf("envelope %s already exists", env.ID)
	}
	if env.DedupKey != nil {
		if _, ok := ms.pendingKeys[*env.DedupKey]; ok {
			return ErrDuplicate
		}
		ms.pendingKeys[*env.DedupKey] = env.ID
	}

	cp := cloneEnvelope(env)
	if cp.Status == "" {
		cp.Status = StatusPending
	}
	ms.envelopes[env.ID] = cp
	ms.order = append(ms.order, env.ID)
	return nil
}

// DeletePending implements PublisherRepository.
func (ms *MemoryStorage) DeletePending(_ context.Context, dedupKey string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	id, ok := ms.pendingKeys[dedupKey]
	if !ok {
		return false, nil
	}
	delete(ms.pendingKeys, dedupKey)
	delete(ms.envelopes, id)
	ms.order = slices.DeleteFunc(ms.order, func(v uuid.UUID) bool { return v == id })
	return true, nil
}

// Claim implements WorkerRepository. The earliest due envelope wins; an
// in-flight envelope whose lock expired is due again.
func (ms *MemoryStorage) Claim(_ context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Envelope, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	var best *Envelope
	for _, id := range ms.order {
		env := ms.envelopes[id]
		if !slices.Contains(queues, env.Queue) || env.DeliverAt.After(now) {
			continue
		}
		switch env.Status {
		case StatusPending:
		case StatusProcessing:
			if env.LockedUntil == nil || env.LockedUntil.After(now) {
				continue
			}
		default:
			continue
		}
		if best == nil || env.DeliverAt.Before(best.DeliverAt) {
			best = env
		}
	}
	if best == nil {
		return nil, ErrNoEnvelopeToClaim
	}

	if best.DedupKey != nil {
		delete(ms.pendingKeys, *best.DedupKey)
		best.DedupKey = nil
	}
	lockedUntil := now.Add(lockDuration)
	best.Status = StatusProcessing
	best.LockedUntil = &lockedUntil
	best.LockedBy = &workerID

	return cloneEnvelope(best), nil
}

// Ack implements WorkerRepository.
func (ms *MemoryStorage) Ack(_ context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	env, err := ms.inFlight(id)
	if err != nil {
		return err
	}
	now := ms.now()
	env.Status = StatusDelivered
	env.DeliveredAt = &now
	env.LockedUntil = nil
	env.LockedBy = nil
	return nil
}

// Nack implements WorkerRepository.
func (ms *MemoryStorage) Nack(_ context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	env, err := ms.inFlight(id)
	if err != nil {
		return err
	}
	env.Attempts++
	env.Error = stringPtr(errMsg)
	env.LockedUntil = nil
	env.LockedBy = nil
	if env.Attempts >= env.MaxAttempts {
		env.Status = StatusFailed
		return nil
	}
	env.Status = StatusPending
	env.DeliverAt = retryAt
	return nil
}

// DeadLetter implements WorkerRepository.
func (ms *MemoryStorage) DeadLetter(_ context.Context, id uuid.UUID, errMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	env, ok := ms.envelopes[id]
	if !ok || (env.Status != StatusProcessing && env.Status != StatusFailed) {
		return ErrEnvelopeNotFound
	}

	ms.deadLetters = append(ms.deadLetters, DeadLetter{
		ID:         uuid.New(),
		EnvelopeID: env.ID,
		Queue:      env.Queue,
		Topic:      env.Topic,
		Payload:    slices.Clone(env.Payload),
		Error:      errMsg,
		Attempts:   env.Attempts,
		FailedAt:   ms.now(),
	})
	delete(ms.envelopes, id)
	ms.order = slices.DeleteFunc(ms.order, func(v uuid.UUID) bool { return v == id })
	return nil
}

// ExtendLock implements WorkerRepository.
func (ms *MemoryStorage) ExtendLock(_ context.Context, id uuid.UUID, d time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	env, err := ms.inFlight(id)
	if err != nil {
		return err
	}
	until := ms.now().Add(d)
	env.LockedUntil = &until
	return nil
}

// Get returns a copy of the envelope with id.
func (ms *MemoryStorage) Get(id uuid.UUID) (*Envelope, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	env, ok := ms.envelopes[id]
	if !ok {
		return nil, false
	}
	return cloneEnvelope(env), true
}

// Envelopes returns copies of all stored envelopes in insertion order.
func (ms *MemoryStorage) Envelopes() []Envelope {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]Envelope, 0, len(ms.order))
	for _, id := range ms.order {
		out = append(out, *cloneEnvelope(ms.envelopes[id]))
	}
	return out
}

func (ms *MemoryStorage) DeadLetters() []DeadLetter {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return slices.Clone(ms.deadLetters)
}

func (ms *MemoryStorage) inFlight(id uuid.UUID) (*Envelope, error) {
	env, ok := ms.envelopes[id]
	if !ok || env.Status != StatusProcessing {
		return nil, ErrEnvelopeNotFound
	}
	return env, nil
}

func cloneEnvelope(env *Envelope) *Envelope {
	cp := *env
	cp.Payload = slices.Clone(env.Payload)
	if env.DedupKey != nil {
		cp.DedupKey = stringPtr(*env.DedupKey)
	}
	if env.LockedUntil != nil {
		t := *env.LockedUntil
		cp.LockedUntil = &t
	}
	if env.LockedBy != nil {
		id := *env.LockedBy
		cp.LockedBy = &id
	}
	if env.DeliveredAt != nil {
		t := *env.DeliveredAt
		cp.DeliveredAt = &t
	}
	if env.Error != nil {
		cp.Error = stringPtr(*env.Error)
	}
	return &cp
}
