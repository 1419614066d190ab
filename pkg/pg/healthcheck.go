package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the part of *pgxpool.Pool the healthcheck uses.
type Querier interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Healthcheck returns a readiness probe. Besides reaching the server it
// verifies that each of tables exists, so a replica that was never migrated
// reports not ready instead of failing on the first event.
func Healthcheck(db Querier, tables ...string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		for _, table := range tables {
			var exists bool
			if err := db.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", table).Scan(&exists); err != nil {
				return errors.Join(ErrHealthcheckFailed, err)
			}
			if !exists {
				return errors.Join(ErrSchemaNotMigrated, fmt.Errorf("table %q not found", table))
			}
		}
		return nil
	}
}
