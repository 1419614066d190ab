package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// OpsRoutes describes the operational endpoints mounted by NewOpsRouter.
type OpsRoutes struct {
	Metrics      http.Handler
	Checks       map[string]Check
	CheckTimeout time.Duration
	Logger       *slog.Logger
	// Mount registers additional routes, e.g. an event intake endpoint.
	Mount func(chi.Router)
}

// NewOpsRouter serves /healthz, /readyz and, when set, /metrics.
func NewOpsRouter(routes OpsRoutes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", LivenessHandler())
	r.Get("/readyz", ReadinessHandler(routes.Logger, routes.CheckTimeout, routes.Checks))
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}
	if routes.Mount != nil {
		routes.Mount(r)
	}

	return r
}
