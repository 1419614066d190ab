// Package pg bootstraps the PostgreSQL layer of the entitlement service on
// top of pgx/v5 and goose/v3.
//
// Connect opens a *pgxpool.Pool with retries. Migrate, Rollback and
// MigrationStatus run goose against an fs.FS, normally the embedded
// migrations package, through a database/sql bridge over the same pool.
// WithTx wraps a unit of work in a transaction, and the Is*Error helpers
// classify *pgconn.PgError values so repositories can map them to domain
// errors.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
//		return err
//	}
package pg
