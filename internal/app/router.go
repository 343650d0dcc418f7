package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-erp/meridian-erp/internal/auth"
	"github.com/meridian-erp/meridian-erp/internal/deliveries"
	"github.com/meridian-erp/meridian-erp/internal/invoicing"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/orders"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/riders"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionManager    *shared.SessionManager
	AuthHandler       *auth.Handler
	OrdersHandler     *orders.Handler
	DeliveriesHandler *deliveries.Handler
	RidersHandler     *riders.Handler
	InvoicingHandler  *invoicing.Handler
	JobHandler        *jobs.Handler
	RBACMiddleware    rbac.Middleware
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Fine-grained checks (per-status rider permissions, privileged
	// mutations) live in the handlers; the router gates who gets in at all.
	r.Route("/orders", func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireAuthenticated())
		params.OrdersHandler.MountRoutes(r)
	})
	r.Route("/deliveries", func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireRole(rbac.RoleAdmin, rbac.RoleStaff, rbac.RoleRider))
		params.DeliveriesHandler.MountRoutes(r)
	})
	r.Route("/riders", func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireRole(rbac.RoleAdmin, rbac.RoleStaff))
		params.RidersHandler.MountRoutes(r)
	})
	r.Route("/invoices", func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireRole(rbac.RoleAdmin, rbac.RoleStaff))
		params.InvoicingHandler.MountRoutes(r)
	})
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireRole(rbac.RoleAdmin))
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
