package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/entitlement/pkg/catalog"
	"github.com/dmitrymomot/entitlement/pkg/delivery"
	"github.com/dmitrymomot/entitlement/pkg/dispatch"
	"github.com/dmitrymomot/entitlement/pkg/entitlement"
	"github.com/dmitrymomot/entitlement/pkg/httpserver"
	"github.com/dmitrymomot/entitlement/pkg/keylock"
	"github.com/dmitrymomot/entitlement/pkg/pg"
	"github.com/dmitrymomot/entitlement/pkg/pgstore"
	"github.com/dmitrymomot/entitlement/pkg/redis"
)

// runtime holds the wired service components.
type runtime struct {
	pool     *pgxpool.Pool
	redis    *goredis.Client
	registry *prometheus.Registry
	engine   *entitlement.Engine
	api      *subscriptionAPI
	checks   map[string]httpserver.Check
}

func (rt *runtime) Close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
}

func buildRuntime(ctx context.Context, cfg appConfig, log *slog.Logger) (_ *runtime, err error) {
	rt := &runtime{
		registry: prometheus.NewRegistry(),
		checks:   map[string]httpserver.Check{},
	}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	rt.pool, err = pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	rt.checks["postgres"] = pg.Healthcheck(rt.pool, "subscriptions", "delivery_envelopes")

	var locker keylock.Locker = keylock.NewMemoryLocker()
	if cfg.Lock.UseRedisLock {
		rt.redis, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		rt.checks["redis"] = redis.Healthcheck(rt.redis, cfg.Lock.KeyPrefix+"healthcheck")
		locker = keylock.NewRedisLockerFromConfig(rt.redis, cfg.Lock, keylock.WithLogger(log))
	}

	storage, err := delivery.NewPostgresStorage(rt.pool)
	if err != nil {
		return nil, err
	}
	publisher, err := delivery.NewPublisher(storage, cfg.Delivery.PublisherOptions()...)
	if err != nil {
		return nil, err
	}
	worker, err := delivery.NewWorker(storage, append(cfg.Delivery.WorkerOptions(), delivery.WithWorkerLogger(log))...)
	if err != nil {
		return nil, err
	}
	source, err := dispatch.NewSource(worker, dispatch.WithSourceLogger(log))
	if err != nil {
		return nil, err
	}
	scheduler, err := dispatch.NewScheduler(publisher)
	if err != nil {
		return nil, err
	}
	emitter, err := dispatch.NewEmitter(publisher)
	if err != nil {
		return nil, err
	}
	subs, err := pgstore.NewSubscriptionRepository(rt.pool)
	if err != nil {
		return nil, err
	}

	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := entitlement.NewPrometheusMetrics(rt.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	rt.engine = entitlement.NewEngine(
		entitlement.ComposeStore(subs, scheduler),
		source,
		catalog.NewFileProviderFromConfig(cfg.Catalog),
		entitlement.NewCatalogAligner(),
		entitlement.WithTransitionWriter(subs),
		entitlement.WithLogger(log),
		entitlement.WithMetrics(metrics),
		entitlement.WithLocker(locker),
		entitlement.WithConfig(cfg.Engine),
	)
	rt.engine.RegisterListeners(entitlement.NewLogListener(log))

	rt.api = &subscriptionAPI{
		subs:    subs,
		emitter: emitter,
		phases:  rt.engine,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log,
	}
	return rt, nil
}
