package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/entitlement/pkg/pg"
)

// DB is the subset of *pgxpool.Pool used by PostgresStorage.
type DB interface {
	pg.TxBeginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage implements PublisherRepository and WorkerRepository on
// the delivery_envelopes and delivery_dead_letters tables.
type PostgresStorage struct {
	db DB
}

func NewPostgresStorage(db DB) (*PostgresStorage, error) {
	if db == nil {
		return nil, ErrRepositoryNil
	}
	return &PostgresStorage{db: db}, nil
}

const envelopeColumns = `id, queue, topic, payload, status, dedup_key, attempts, max_attempts,
	deliver_at, locked_until, locked_by, delivered_at, error, created_at`

func scanEnvelope(row pgx.Row) (*Envelope, error) {
	var env Envelope
	err := row.Scan(
		&env.ID, &env.Queue, &env.Topic, &env.Payload, &env.Status, &env.DedupKey,
		&env.Attempts, &env.MaxAttempts, &env.DeliverAt, &env.LockedUntil, &env.LockedBy,
		&env.DeliveredAt, &env.Error, &env.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &env, nil
}

// Insert implements PublisherRepository. The partial unique index on
// pending dedup keys turns a second pending envelope into ErrDuplicate.
func (s *PostgresStorage) Insert(ctx context.Context, env *Envelope) error {
	if env == nil {
		return ErrPayloadNil
	}
	status := env.Status
	if status == "" {
		status = StatusPending
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO delivery_envelopes (`+envelopeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		env.ID, env.Queue, env.Topic, env.Payload, status, env.DedupKey,
		env.Attempts, env.MaxAttempts, env.DeliverAt, env.LockedUntil, env.LockedBy,
		env.DeliveredAt, env.Error, env.CreatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) && pg.ConstraintName(err) == "delivery_envelopes_pending_dedup_key" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert envelope: %w", err)
	}
	return nil
}

// DeletePending implements PublisherRepository.
func (s *PostgresStorage) DeletePending(ctx context.Context, dedupKey string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM delivery_envelopes
		WHERE dedup_key = $1 AND status = $2`,
		dedupKey, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("delete pending envelope: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Claim implements WorkerRepository using FOR UPDATE SKIP LOCKED so
// concurrent workers never claim the same row.
func (s *PostgresStorage) Claim(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Envelope, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE delivery_envelopes
		SET status = 'processing',
			dedup_key = NULL,
			locked_by = $1,
			locked_until = now() + make_interval(secs => $2)
		WHERE id = (
			SELECT id FROM delivery_envelopes
			WHERE queue = ANY($3)
				AND deliver_at <= now()
				AND (status = 'pending' OR (status = 'processing' AND locked_until < now()))
			ORDER BY deliver_at, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+envelopeColumns,
		workerID, lockDuration.Seconds(), queues,
	)

	env, err := scanEnvelope(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNoEnvelopeToClaim
		}
		return nil, fmt.Errorf("claim envelope: %w", err)
	}
	return env, nil
}

// Ack implements WorkerRepository.
func (s *PostgresStorage) Ack(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE delivery_envelopes
		SET status = 'delivered', delivered_at = now(), locked_until = NULL, locked_by = NULL
		WHERE id = $1 AND status = 'processing'`, id)
	if err != nil {
		return fmt.Errorf("ack envelope: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEnvelopeNotFound
	}
	return nil
}

// Nack implements WorkerRepository.
func (s *PostgresStorage) Nack(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE delivery_envelopes
		SET attempts = attempts + 1,
			error = $2,
			locked_until = NULL,
			locked_by = NULL,
			status = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
			deliver_at = CASE WHEN attempts + 1 >= max_attempts THEN deliver_at ELSE $3 END
		WHERE id = $1 AND status = 'processing'`, id, errMsg, retryAt)
	if err != nil {
		return fmt.Errorf("nack envelope: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEnvelopeNotFound
	}
	return nil
}

// DeadLetter implements WorkerRepository.
func (s *PostgresStorage) DeadLetter(ctx context.Context, id uuid.UUID, errMsg string) error {
	return pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO delivery_dead_letters (id, envelope_id, queue, topic, payload, error, attempts, failed_at)
			SELECT $2, id, queue, topic, payload, $3, attempts, now()
			FROM delivery_envelopes
			WHERE id = $1 AND status IN ('processing', 'failed')`,
			id, uuid.New(), errMsg)
		if err != nil {
			return fmt.Errorf("insert dead letter: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrEnvelopeNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM delivery_envelopes WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete dead-lettered envelope: %w", err)
		}
		return nil
	})
}

// ExtendLock implements WorkerRepository.
func (s *PostgresStorage) ExtendLock(ctx context.Context, id uuid.UUID, d time.Duration) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE delivery_envelopes
		SET locked_until = now() + make_interval(secs => $2)
		WHERE id = $1 AND status = 'processing'`, id, d.Seconds())
	if err != nil {
		return fmt.Errorf("extend envelope lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEnvelopeNotFound
	}
	return nil
}

// Get returns the envelope with id.
func (s *PostgresStorage) Get(ctx context.Context, id uuid.UUID) (*Envelope, error) {
	env, err := scanEnvelope(s.db.QueryRow(ctx,
		`SELECT `+envelopeColumns+` FROM delivery_envelopes WHERE id = $1`, id))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrEnvelopeNotFound
		}
		return nil, fmt.Errorf("get envelope: %w", err)
	}
	return env, nil
}
