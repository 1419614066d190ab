package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlement/pkg/logger"
)

// WorkerRepository is the storage side of a Worker.
type WorkerRepository interface {
	// Claim locks the next due envelope of queues for workerID. Claiming
	// releases the envelope's dedup key. Envelopes whose lock expired are
	// claimable again. Returns ErrNoEnvelopeToClaim when nothing is due.
	Claim(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Envelope, error)

	// Ack marks an in-flight envelope delivered.
	Ack(ctx context.Context, id uuid.UUID) error

	// Nack records a failed attempt and makes the envelope due again at
	// retryAt, or marks it failed once its attempts are used up.
	Nack(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error

	// DeadLetter moves an in-flight or failed envelope to the dead letters.
	DeadLetter(ctx context.Context, id uuid.UUID, errMsg string) error

	// ExtendLock pushes the lock of an in-flight envelope forward.
	ExtendLock(ctx context.Context, id uuid.UUID, d time.Duration) error
}

// Worker polls a WorkerRepository and hands claimed envelopes to the
// handler registered for their topic.
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex

	pollInterval    time.Duration
	lockTimeout     time.Duration
	shutdownTimeout time.Duration
	retryBackoff    time.Duration
	now             func() time.Time
	logger          *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a Worker.
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	o := &workerOptions{
		queues:          []string{DefaultQueueName},
		pollInterval:    time.Second,
		lockTimeout:     time.Minute,
		shutdownTimeout: 30 * time.Second,
		retryBackoff:    30 * time.Second,
		concurrency:     1,
		now:             time.Now,
		logger:          slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}

	id := uuid.New()
	return &Worker{
		repo:            repo,
		handlers:        make(map[string]Handler),
		queues:          o.queues,
		workerID:        id,
		sem:             make(chan struct{}, o.concurrency),
		pollInterval:    o.pollInterval,
		lockTimeout:     o.lockTimeout,
		shutdownTimeout: o.shutdownTimeout,
		retryBackoff:    o.retryBackoff,
		now:             o.now,
		logger:          o.logger.With(logger.Component("delivery"), slog.String("worker_id", id.String())),
	}, nil
}

// ID returns the worker identifier recorded on claimed envelopes.
func (w *Worker) ID() uuid.UUID { return w.workerID }

// RegisterHandler registers h for its topic.
func (w *Worker) RegisterHandler(h Handler) {
	w.RegisterHandlers(h)
}

// RegisterHandlers registers handlers by topic. A later handler replaces an
// earlier one for the same topic.
func (w *Worker) RegisterHandlers(handlers ...Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			w.handlers[h.Topic()] = h
		}
	}
}

// Start begins polling in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerRunning
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)
	go w.run()

	_, host, pid := w.Info()
	w.logger.Info("worker started",
		slog.Any("queues", w.queues),
		slog.Int("concurrency", cap(w.sem)),
		slog.String("host", host),
		slog.Int("pid", pid))
	return nil
}

// Stop stops polling and waits for in-flight envelopes until ctx is done.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotRunning
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.logger.Info("worker stopping, waiting for in-flight envelopes")

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop worker: %w", ctx.Err())
	}
}

// Run starts the worker and stops it when ctx is done. The returned
// function fits errgroup.Group.Go.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.shutdownTimeout)
		defer cancel()
		return w.Stop(stopCtx)
	}
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				// wg.Add must not race with Stop's wg.Wait.
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem
					return
				}
				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if err := w.claimAndDeliver(); err != nil && !errors.Is(err, ErrHandlerNotFound) {
						w.logger.Error("delivery failed", logger.Error(err))
					}
				}()
			default:
				w.logger.Debug("all worker slots busy, skipping tick")
			}
		}
	}
}

func (w *Worker) claimAndDeliver() error {
	env, err := w.repo.Claim(w.ctx, w.workerID, w.queues, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoEnvelopeToClaim) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("claim envelope: %w", err)
	}
	if env == nil {
		return nil
	}

	w.logger.Debug("claimed envelope",
		slog.String("envelope_id", env.ID.String()),
		slog.String("topic", env.Topic),
		slog.String("queue", env.Queue))

	return w.deliver(env)
}

func (w *Worker) deliver(env *Envelope) (retErr error) {
	start := w.now()

	// Repository calls outlive the poll loop so a stopping worker still
	// settles what it claimed.
	ctx := context.WithoutCancel(w.ctx)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrPanic, r)
			w.logger.Error("handler panicked",
				slog.String("envelope_id", env.ID.String()),
				slog.String("topic", env.Topic),
				slog.Any("panic", r))
			retErr = w.failed(ctx, env, err, w.now().Sub(start))
		}
	}()

	w.mu.RLock()
	h, ok := w.handlers[env.Topic]
	w.mu.RUnlock()
	if !ok {
		return w.missingHandler(ctx, env)
	}

	hctx, cancel := context.WithTimeout(ctx, w.lockTimeout)
	defer cancel()

	if err := h.Handle(hctx, env.Payload); err != nil {
		return w.failed(ctx, env, err, w.now().Sub(start))
	}
	return w.delivered(ctx, env, w.now().Sub(start))
}

// missingHandler dead-letters the envelope right away; retrying cannot
// succeed until a handler is deployed.
func (w *Worker) missingHandler(ctx context.Context, env *Envelope) error {
	w.logger.Error("no handler registered for topic",
		slog.String("envelope_id", env.ID.String()),
		slog.String("topic", env.Topic))

	if err := w.repo.DeadLetter(ctx, env.ID, ErrHandlerNotFound.Error()+": "+env.Topic); err != nil {
		return fmt.Errorf("dead-letter envelope %s: %w", env.ID, err)
	}
	return ErrHandlerNotFound
}

func (w *Worker) failed(ctx context.Context, env *Envelope, cause error, took time.Duration) error {
	attempt := env.Attempts + 1
	w.logger.Error("handler failed",
		slog.String("envelope_id", env.ID.String()),
		slog.String("topic", env.Topic),
		slog.Int("attempt", int(attempt)),
		slog.Int("max_attempts", int(env.MaxAttempts)),
		logger.Duration(took),
		logger.Error(cause))

	retryAt := w.now().Add(time.Duration(attempt) * w.retryBackoff)
	if err := w.repo.Nack(ctx, env.ID, cause.Error(), retryAt); err != nil {
		return fmt.Errorf("nack envelope %s: %w", env.ID, err)
	}

	if env.Exhausted() {
		if err := w.repo.DeadLetter(ctx, env.ID, cause.Error()); err != nil {
			return fmt.Errorf("dead-letter envelope %s: %w", env.ID, err)
		}
		w.logger.Warn("envelope moved to dead letters",
			slog.String("envelope_id", env.ID.String()),
			slog.String("topic", env.Topic))
	}
	return nil
}

func (w *Worker) delivered(ctx context.Context, env *Envelope, took time.Duration) error {
	if err := w.repo.Ack(ctx, env.ID); err != nil {
		return fmt.Errorf("ack envelope %s: %w", env.ID, err)
	}

	w.logger.Debug("envelope delivered",
		slog.String("envelope_id", env.ID.String()),
		slog.String("topic", env.Topic),
		logger.Duration(took))
	return nil
}

// ExtendLock extends the lock of an envelope whose handler runs longer than
// the lock timeout.
func (w *Worker) ExtendLock(ctx context.Context, id uuid.UUID, d time.Duration) error {
	return w.repo.ExtendLock(ctx, id, d)
}

// Info returns the worker id, host name and process id.
func (w *Worker) Info() (id string, hostname string, pid int) {
	hostname, _ = os.Hostname()
	return w.workerID.String(), hostname, os.Getpid()
}
