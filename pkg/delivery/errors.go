package delivery

import "errors"

var (
	// ErrRepositoryNil is returned when a nil repository is provided.
	ErrRepositoryNil = errors.New("delivery: repository cannot be nil")

	// ErrPayloadNil is returned when publishing a nil payload.
	ErrPayloadNil = errors.New("delivery: payload cannot be nil")

	// ErrTopicEmpty is returned when publishing without a topic.
	ErrTopicEmpty = errors.New("delivery: topic cannot be empty")

	// ErrDuplicate is returned when a pending envelope already holds the dedup key.
	ErrDuplicate = errors.New("delivery: pending envelope with the same dedup key exists")

	// ErrNoEnvelopeToClaim is returned by Claim when nothing is due.
	ErrNoEnvelopeToClaim = errors.New("delivery: no envelope to claim")

	// ErrEnvelopeNotFound is returned for unknown or not-in-flight envelopes.
	ErrEnvelopeNotFound = errors.New("delivery: envelope not found or not in processing state")

	// ErrHandlerNotFound is returned when no handler is registered for a topic.
	ErrHandlerNotFound = errors.New("delivery: no handler registered for topic")

	// ErrNoHandlers is returned when starting a worker without handlers.
	ErrNoHandlers = errors.New("delivery: no handlers registered")

	// ErrWorkerRunning is returned by Start on a running worker.
	ErrWorkerRunning = errors.New("delivery: worker already started")

	// ErrWorkerNotRunning is returned by Stop on a worker that is not running.
	ErrWorkerNotRunning = errors.New("delivery: worker not started")

	// ErrPanic wraps a recovered handler panic.
	ErrPanic = errors.New("delivery: handler panicked")
)
