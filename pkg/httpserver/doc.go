// Package httpserver runs the operational HTTP endpoint of the entitlement
// daemon: liveness and readiness probes, Prometheus metrics and the optional
// event intake routes.
//
// Server.Run blocks until its context is cancelled and then shuts down within
// the configured deadline, so it can be started from an errgroup next to the
// delivery workers:
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	g.Go(func() error {
//		return srv.Run(ctx, httpserver.NewOpsRouter(httpserver.OpsRoutes{
//			Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
//			Checks:  map[string]httpserver.Check{"postgres": pg.Healthcheck(pool, "subscriptions")},
//		}))
//	})
package httpserver
