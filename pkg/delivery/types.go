package delivery

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is used when no queue is specified.
const DefaultQueueName = "entitlement"

// Status is the delivery state of an envelope.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
)

// Envelope is a payload waiting to be delivered to the handler of its topic
// at or after DeliverAt.
type Envelope struct {
	ID          uuid.UUID  `json:"id"`
	Queue       string     `json:"queue"`
	Topic       string     `json:"topic"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      Status     `json:"status"`
	DedupKey    *string    `json:"dedup_key,omitempty"`
	Attempts    int16      `json:"attempts"`
	MaxAttempts int16      `json:"max_attempts"`
	DeliverAt   time.Time  `json:"deliver_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Exhausted reports whether one more failure would use up the attempts.
func (e *Envelope) Exhausted() bool {
	return e.Attempts+1 >= e.MaxAttempts
}

// DeadLetter keeps an envelope that could not be delivered for inspection
// and manual replay.
type DeadLetter struct {
	ID         uuid.UUID `json:"id"`
	EnvelopeID uuid.UUID `json:"envelope_id"`
	Queue      string    `json:"queue"`
	Topic      string    `json:"topic"`
	Payload    []byte    `json:"payload,omitempty"`
	Error      string    `json:"error"`
	Attempts   int16     `json:"attempts"`
	FailedAt   time.Time `json:"failed_at"`
}

func stringPtr(s string) *string { return &s }
