package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, gatherer prometheus.Gatherer, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	allowCredentials := true
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
		allowCredentials = false
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", orgHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	}))

	// Health checks
	r.Get("/health", h.HealthCheck)
	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(h.orgContext)

		r.Get("/params/defaults", h.GetDefaultParams)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", h.ListReports)
			r.Post("/", h.CreateReport)
			r.Route("/{reportId}", func(r chi.Router) {
				r.Get("/", h.GetReport)
				r.Delete("/", h.DeleteReport)
				r.Get("/results", h.GetResults)
				r.Get("/export", h.ExportResults)
				r.Post("/reanalyze", h.ReanalyzeReport)
			})
		})

		r.Route("/imports", func(r chi.Router) {
			r.Get("/", h.ListImports)
			r.Get("/status", h.ImportStatus)
			r.Post("/trigger", h.TriggerImport)
			r.Post("/retry", h.RetryImport)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})

	return r
}
