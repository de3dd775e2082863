package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/auth"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/ledger"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/observability"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/orders"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/httpx"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/pricing"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/tracking"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/weeks"
	"github.com/GonzaJCalderon/EatAndRun-Back/jobs"
)

// Pinger reports dependency health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Auth            auth.Middleware
	WeeksHandler    *weeks.Handler
	OrdersHandler   *orders.Handler
	LedgerHandler   *ledger.Handler
	TrackingHandler *tracking.Handler
	PricingHandler  *pricing.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
	Database        Pinger
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Database != nil {
			if err := params.Database.Ping(r.Context()); err != nil {
				params.Logger.Warn("health check", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "database unreachable")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(params.Auth.Authenticate)
		if params.WeeksHandler != nil {
			r.Route("/weeks", params.WeeksHandler.MountRoutes)
		}
		r.Route("/orders", func(r chi.Router) {
			if params.OrdersHandler != nil {
				params.OrdersHandler.MountRoutes(r)
			}
			if params.LedgerHandler != nil {
				params.LedgerHandler.MountRoutes(r)
			}
			if params.TrackingHandler != nil {
				params.TrackingHandler.MountRoutes(r)
			}
		})
		if params.PricingHandler != nil {
			r.Route("/pricing", params.PricingHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
