package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/entitlement/pkg/entitlement"
	"github.com/dmitrymomot/entitlement/pkg/pg"
)

// ErrDBNil is returned when a nil database is provided.
var ErrDBNil = errors.New("pgstore: database cannot be nil")

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	pg.TxBeginner
	querier
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SubscriptionRepository stores subscriptions and their transitions in the
// subscriptions and subscription_transitions tables. It implements
// entitlement.SubscriptionReader.
type SubscriptionRepository struct {
	db DB
}

func NewSubscriptionRepository(db DB) (*SubscriptionRepository, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	return &SubscriptionRepository{db: db}, nil
}

// GetSubscription loads a subscription with its transitions ordered by
// effective time, then insertion order.
func (r *SubscriptionRepository) GetSubscription(ctx context.Context, id uuid.UUID) (*entitlement.Subscription, error) {
	return getSubscription(ctx, r.db, id, false)
}

// CreateSubscription inserts sub and its transitions.
func (r *SubscriptionRepository) CreateSubscription(ctx context.Context, sub *entitlement.Subscription) error {
	if err := sub.ValidateTransitions(); err != nil {
		return err
	}

	return pg.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO subscriptions (id, bundle_id, category, current_plan, current_phase, current_plan_start, start_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sub.ID, sub.BundleID, sub.Category, sub.CurrentPlan, sub.CurrentPhase,
			nullTime(sub.CurrentPlanStart), nullTime(sub.StartDate),
		)
		if err != nil {
			if pg.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s", entitlement.ErrSubscriptionExists, sub.ID)
			}
			return fmt.Errorf("insert subscription: %w", err)
		}

		for _, t := range sub.Transitions {
			if err := insertTransition(ctx, tx, sub.ID, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendTransition records t on the stored subscription and moves its
// current plan and phase. The subscription row is locked for the update.
func (r *SubscriptionRepository) AppendTransition(ctx context.Context, id uuid.UUID, t entitlement.Transition) error {
	return pg.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		sub, err := getSubscription(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := sub.AppendTransition(t); err != nil {
			return err
		}
		if err := insertTransition(ctx, tx, id, t); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE subscriptions
			SET current_plan = $2, current_phase = $3, current_plan_start = $4, start_date = $5, updated_at = now()
			WHERE id = $1`,
			id, sub.CurrentPlan, sub.CurrentPhase, nullTime(sub.CurrentPlanStart), nullTime(sub.StartDate),
		)
		if err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
		return nil
	})
}

func getSubscription(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*entitlement.Subscription, error) {
	query := `
		SELECT id, bundle_id, category, current_plan, current_phase, current_plan_start, start_date
		FROM subscriptions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		sub              entitlement.Subscription
		planStart, start *time.Time
	)
	err := q.QueryRow(ctx, query, id).Scan(
		&sub.ID, &sub.BundleID, &sub.Category, &sub.CurrentPlan, &sub.CurrentPhase, &planStart, &start,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", entitlement.ErrSubscriptionNotFound, id)
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if planStart != nil {
		sub.CurrentPlanStart = planStart.UTC()
	}
	if start != nil {
		sub.StartDate = start.UTC()
	}

	rows, err := q.Query(ctx, `
		SELECT subscription_id, kind, previous_plan, previous_phase, next_plan, next_phase, effective_at, requested_at
		FROM subscription_transitions
		WHERE subscription_id = $1
		ORDER BY effective_at, seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}

	sub.Transitions, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (entitlement.Transition, error) {
		var t entitlement.Transition
		err := row.Scan(&t.SubscriptionID, &t.Kind, &t.PreviousPlan, &t.PreviousPhase,
			&t.NextPlan, &t.NextPhase, &t.EffectiveAt, &t.RequestedAt)
		t.EffectiveAt, t.RequestedAt = t.EffectiveAt.UTC(), t.RequestedAt.UTC()
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan transitions: %w", err)
	}
	return &sub, nil
}

func insertTransition(ctx context.Context, tx pgx.Tx, id uuid.UUID, t entitlement.Transition) error {
	requested := t.RequestedAt
	if requested.IsZero() {
		requested = t.EffectiveAt
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO subscription_transitions
			(subscription_id, kind, previous_plan, previous_phase, next_plan, next_phase, effective_at, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, t.Kind, t.PreviousPlan, t.PreviousPhase, t.NextPlan, t.NextPhase, t.EffectiveAt, requested,
	)
	if err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return fmt.Errorf("%w: %s", entitlement.ErrSubscriptionNotFound, id)
		}
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
