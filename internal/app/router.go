package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-fin/meridian/internal/assets"
	"github.com/meridian-fin/meridian/internal/expense"
	"github.com/meridian-fin/meridian/internal/ledger/accounts"
	"github.com/meridian-fin/meridian/internal/ledger/journals"
	"github.com/meridian-fin/meridian/internal/ledger/mappings"
	"github.com/meridian-fin/meridian/internal/observability"
	"github.com/meridian-fin/meridian/internal/payroll"
	"github.com/meridian-fin/meridian/internal/sales"
	"github.com/meridian-fin/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AccountsHandler *accounts.Handler
	JournalsHandler *journals.Handler
	MappingsHandler *mappings.Handler
	ExpenseHandler  *expense.Handler
	PayrollHandler  *payroll.Handler
	AssetsHandler   *assets.Handler
	SalesHandler    *sales.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
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
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/ledger", func(r chi.Router) {
		if params.AccountsHandler != nil {
			params.AccountsHandler.MountRoutes(r)
		}
		if params.JournalsHandler != nil {
			params.JournalsHandler.MountRoutes(r)
		}
		if params.MappingsHandler != nil {
			params.MappingsHandler.MountRoutes(r)
		}
	})

	if params.ExpenseHandler != nil {
		params.ExpenseHandler.MountRoutes(r)
	}
	if params.PayrollHandler != nil {
		params.PayrollHandler.MountRoutes(r)
	}
	if params.AssetsHandler != nil {
		params.AssetsHandler.MountRoutes(r)
	}
	if params.SalesHandler != nil {
		params.SalesHandler.MountRoutes(r)
	}

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
