package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agrovista-erp/agrovista-erp/internal/approvals"
	"github.com/agrovista-erp/agrovista-erp/internal/auth"
	"github.com/agrovista-erp/agrovista-erp/internal/authz"
	"github.com/agrovista-erp/agrovista-erp/internal/observability"
	"github.com/agrovista-erp/agrovista-erp/internal/roles"
	"github.com/agrovista-erp/agrovista-erp/internal/shared"
	"github.com/agrovista-erp/agrovista-erp/internal/users"
	"github.com/agrovista-erp/agrovista-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	AuthzHandler     *authz.Handler
	ApprovalsHandler *approvals.Handler
	RolesHandler     *roles.Handler
	UsersHandler     *users.Handler
	AuthzMiddleware  authz.Middleware
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with AgroVista defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
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

	params.AuthHandler.MountRoutes(r)

	// Everything beyond auth requires a resolved actor.
	r.Group(func(r chi.Router) {
		r.Use(params.AuthzMiddleware.WithActor)

		params.AuthzHandler.MountRoutes(r)
		params.ApprovalsHandler.MountRoutes(r, params.AuthzMiddleware)
		if params.RolesHandler != nil {
			params.RolesHandler.MountRoutes(r, params.AuthzMiddleware)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r, params.AuthzMiddleware)
		}
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.AuthzMiddleware.WithActor, params.AuthzMiddleware.RequireAdmin)
			params.JobsHandler.MountRoutes(r)
		})
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
