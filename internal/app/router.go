package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stitchline-erp/stitchline-erp/internal/audit"
	"github.com/stitchline-erp/stitchline-erp/internal/materials"
	"github.com/stitchline-erp/stitchline-erp/internal/migration"
	"github.com/stitchline-erp/stitchline-erp/internal/observability"
	"github.com/stitchline-erp/stitchline-erp/internal/units"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	UnitsHandler     *units.Handler
	MaterialsHandler *materials.Handler
	AuditHandler     *audit.Handler
	MigrationHandler *migration.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Stitchline defaults.
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
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		if params.UnitsHandler != nil {
			params.UnitsHandler.Routes(api)
		}
		if params.MaterialsHandler != nil {
			params.MaterialsHandler.Routes(api)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.Routes(api)
		}
		if params.MigrationHandler != nil {
			params.MigrationHandler.Routes(api)
		}
	})

	return r
}
