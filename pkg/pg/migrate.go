package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// logger is the subset of *slog.Logger goose output is routed to.
type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// goose keeps dialect, table and base FS in package globals.
var gooseMu sync.Mutex

// Migrate applies all pending migrations found in fsys.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, cfg Config, log logger) error {
	return runGoose(ctx, pool, fsys, cfg, log, func(ctx context.Context, db gooseDB, dir string) error {
		return goose.UpContext(ctx, db, dir)
	})
}

// Rollback reverts the most recent migration.
func Rollback(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, cfg Config, log logger) error {
	return runGoose(ctx, pool, fsys, cfg, log, func(ctx context.Context, db gooseDB, dir string) error {
		return goose.DownContext(ctx, db, dir)
	})
}

// MigrationStatus logs the applied state of every migration.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, cfg Config, log logger) error {
	return runGoose(ctx, pool, fsys, cfg, log, func(ctx context.Context, db gooseDB, dir string) error {
		return goose.StatusContext(ctx, db, dir)
	})
}

type gooseDB = *sql.DB

func runGoose(
	ctx context.Context,
	pool *pgxpool.Pool,
	fsys fs.FS,
	cfg Config,
	log logger,
	fn func(context.Context, gooseDB, string) error,
) error {
	if fsys == nil {
		return errors.Join(ErrFailedToApplyMigrations, ErrMigrationsNotProvided)
	}

	dir := cfg.MigrationsPath
	if dir == "" {
		dir = "."
	}

	// goose speaks database/sql; share the pool's connections through stdlib.
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration connection", "error", err)
		}
	}()

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(&gooseLogger{log: log})
	if cfg.MigrationsTable != "" {
		goose.SetTableName(cfg.MigrationsTable)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	if err := fn(ctx, db, dir); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

// gooseLogger adapts goose's printf logging to structured logging.
type gooseLogger struct {
	log logger
}

func (a *gooseLogger) Fatalf(format string, v ...any) {
	a.log.ErrorContext(context.Background(), fmt.Sprintf(format, v...), "component", "migrations")
}

func (a *gooseLogger) Printf(format string, v ...any) {
	a.log.InfoContext(context.Background(), fmt.Sprintf(format, v...), "component", "migrations")
}
