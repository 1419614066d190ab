package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/entitlement/migrations"
	"github.com/dmitrymomot/entitlement/pkg/pg"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or inspect database migrations",
		Long:      "migrate runs the embedded goose migrations against PG_CONN_URL. Without an argument it applies all pending migrations.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := pg.Connect(ctx, cfg.Postgres)
			if err != nil {
				return err
			}
			defer pool.Close()

			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}

			switch direction {
			case "down":
				return pg.Rollback(ctx, pool, migrations.FS, cfg.Postgres, log)
			case "status":
				return pg.MigrationStatus(ctx, pool, migrations.FS, cfg.Postgres, log)
			default:
				return pg.Migrate(ctx, pool, migrations.FS, cfg.Postgres, log)
			}
		},
	}
	return cmd
}
