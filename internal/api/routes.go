package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes. health may be nil.
func SetupRoutes(h *Handlers, health *HealthChecker, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/live", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}

	r.Route("/api", func(r chi.Router) {
		// Uploads and jobs
		r.Post("/uploads", h.HandleUpload)
		r.Get("/jobs", h.HandleListJobs)
		r.Get("/jobs/{id}", h.HandleGetJob)
		r.Post("/jobs/{id}/cancel", h.HandleCancelJob)
		r.Delete("/queue", h.HandleClearQueue)
		r.Post("/session/reset", h.HandleResetSession)

		// Views
		r.Get("/metrics", h.HandleGetMetrics)
		r.Put("/metrics", h.HandleSetMetrics)
		r.Get("/stats", h.HandleStats)
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.HandleAccounts)
			r.Get("/names", h.HandleAccountNames)
			r.Get("/export.csv", h.HandleExportAccounts)
			r.Get("/export.xlsx", h.HandleExportAccounts)
			r.Get("/{key}/trend", h.HandleTrend)
		})
		r.Route("/posts", func(r chi.Router) {
			r.Get("/", h.HandlePosts)
			r.Get("/export.csv", h.HandleExportPosts)
			r.Get("/export.xlsx", h.HandleExportPosts)
		})

		// Column mappings
		r.Route("/mappings", func(r chi.Router) {
			r.Get("/", h.HandleGetMappings)
			r.Put("/rename", h.HandleRename)
			r.Post("/bindings", h.HandleBind)
			r.Delete("/bindings", h.HandleUnbind)
			r.Post("/exclusions", h.HandleExclude)
			r.Delete("/exclusions", h.HandleInclude)
			r.Put("/required", h.HandleSetRequired)
			r.Post("/reset", h.HandleResetMappings)
			r.Post("/validate", h.HandleValidateHeaders)
		})

		r.Get("/storage/stats", h.HandleStorageStats)
		r.Post("/inbox/trigger", h.HandleInboxTrigger)
		r.Get("/inbox/status", h.HandleInboxStatus)
	})

	return r
}
