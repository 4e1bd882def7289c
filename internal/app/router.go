package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/harambee-fund/harambee/internal/accounting"
	audithttp "github.com/harambee-fund/harambee/internal/audit/http"
	"github.com/harambee-fund/harambee/internal/contributions"
	"github.com/harambee-fund/harambee/internal/debts"
	"github.com/harambee-fund/harambee/internal/disasters"
	"github.com/harambee-fund/harambee/internal/loans"
	"github.com/harambee-fund/harambee/internal/members"
	"github.com/harambee-fund/harambee/internal/observability"
	"github.com/harambee-fund/harambee/internal/penalties"
	"github.com/harambee-fund/harambee/internal/rbac"
	"github.com/harambee-fund/harambee/internal/settings"
	"github.com/harambee-fund/harambee/jobs"
)

// RouterParams groups dependencies for building the HTTP router. Nil handlers
// are skipped.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics

	MembersHandler       *members.Handler
	ContributionsHandler *contributions.Handler
	DebtsHandler         *debts.Handler
	LoansHandler         *loans.Handler
	PenaltiesHandler     *penalties.Handler
	DisastersHandler     *disasters.Handler
	AccountingHandler    *accounting.Handler
	SettingsHandler      *settings.Handler
	AuditHandler         *audithttp.Handler
	PermissionsHandler   *rbac.PermissionsHandler
	JobHandler           *jobs.Handler
}

type mounter interface {
	MountRoutes(chi.Router)
}

// NewRouter constructs the chi.Router with Harambee defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		RBAC:    params.RBACMiddleware,
		Metrics: params.Metrics,
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
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	api := []struct {
		path    string
		handler mounter
		present bool
	}{
		{"/members", params.MembersHandler, params.MembersHandler != nil},
		{"/contributions", params.ContributionsHandler, params.ContributionsHandler != nil},
		{"/debts", params.DebtsHandler, params.DebtsHandler != nil},
		{"/loans", params.LoansHandler, params.LoansHandler != nil},
		{"/penalties", params.PenaltiesHandler, params.PenaltiesHandler != nil},
		{"/disasters", params.DisastersHandler, params.DisastersHandler != nil},
		{"/accounting", params.AccountingHandler, params.AccountingHandler != nil},
		{"/settings", params.SettingsHandler, params.SettingsHandler != nil},
		{"/audit", params.AuditHandler, params.AuditHandler != nil},
		{"/rbac", params.PermissionsHandler, params.PermissionsHandler != nil},
	}
	r.Route("/api", func(r chi.Router) {
		for _, m := range api {
			if !m.present {
				continue
			}
			r.Route(m.path, m.handler.MountRoutes)
		}
	})

	return r
}
