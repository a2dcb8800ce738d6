package http

import (
	"net/http"

	"radpad-intake-service/internal/app"
	"radpad-intake-service/internal/observability"
	"radpad-intake-service/internal/observability/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	h := &handlers{
		workflows:    application.Workflows,
		ledger:       application.Ledger,
		searcher:     application.Searcher,
		searchPolicy: application.SearchPolicy,
	}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.HTTPMiddleware(metrics.DefaultMetrics))
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Route("/workflows", func(r chi.Router) {
			r.Post("/", h.createWorkflow)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getWorkflow)
				r.Delete("/", h.deleteWorkflow)
				r.Post("/submissions", h.submit)
				r.Post("/accept", h.accept)
				r.Post("/reset", h.reset)
			})
		})
		r.Get("/credits", h.credits)
		r.Get("/search/{list}/ws", h.searchSocket)
	})

	return r
}
