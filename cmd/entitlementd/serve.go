package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/entitlement/pkg/entitlement"
	"github.com/dmitrymomot/entitlement/pkg/httpserver"
	"github.com/dmitrymomot/entitlement/pkg/logger"
)

var errEngineNotStarted = errors.New("engine not started")

func newServeCmd(flags *rootFlags) *cobra.Command {
	var noIntake bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the entitlement engine and the ops HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.engine.Initialize(ctx); err != nil {
				return fmt.Errorf("initialize engine: %w", err)
			}
			if err := rt.engine.Start(ctx); err != nil {
				return fmt.Errorf("start engine: %w", err)
			}
			rt.checks["engine"] = func(context.Context) error {
				if rt.engine.State() != entitlement.StateStarted {
					return errEngineNotStarted
				}
				return nil
			}

			routes := httpserver.OpsRoutes{
				Metrics:      promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}),
				Checks:       rt.checks,
				CheckTimeout: cfg.HTTP.CheckTimeout,
				Logger:       log,
			}
			if !noIntake {
				routes.Mount = mountIntake(rt.api)
			}
			srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Run(gctx, httpserver.NewOpsRouter(routes))
			})
			g.Go(func() error {
				<-gctx.Done()
				stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Delivery.ShutdownTimeout)
				defer cancel()
				return rt.engine.Stop(stopCtx)
			})

			log.InfoContext(ctx, "entitlementd started",
				slog.String("version", Version),
				slog.String("ops_addr", cfg.HTTP.Addr),
				slog.Bool("intake", !noIntake),
			)
			err = g.Wait()
			log.InfoContext(context.WithoutCancel(ctx), "entitlementd stopped", logger.Error(err))
			return err
		},
	}

	cmd.Flags().BoolVar(&noIntake, "no-intake", false, "do not serve POST /v1/events")
	return cmd
}
