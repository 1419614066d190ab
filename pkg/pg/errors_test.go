package pg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/entitlement/pkg/pg"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "delivery_envelopes_dedup_key_idx"})
	fk := &pgconn.PgError{Code: "23503"}
	serial := &pgconn.PgError{Code: "40001"}

	assert.True(t, pg.IsDuplicateKeyError(dup))
	assert.False(t, pg.IsDuplicateKeyError(fk))
	assert.Equal(t, "delivery_envelopes_dedup_key_idx", pg.ConstraintName(dup))

	assert.True(t, pg.IsForeignKeyViolationError(fk))
	assert.True(t, pg.IsSerializationError(serial))

	assert.True(t, pg.IsNotFoundError(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(nil))
	assert.False(t, pg.IsDuplicateKeyError(errors.New("plain")))
	assert.Empty(t, pg.ConstraintName(errors.New("plain")))
}
