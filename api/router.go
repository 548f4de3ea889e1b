package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nicco6482/desintesa/api/middleware"
	"github.com/nicco6482/desintesa/pkg/metrics"
)

type RouterConfig struct {
	AllowedOrigin string
	Metrics       *metrics.Metrics
	Log           zerolog.Logger
}

// NewRouter wires middleware and every API route.
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(cfg.Log, cfg.Metrics))
	r.Use(middleware.Recovery(cfg.Log))
	r.Use(middleware.CORS(cfg.AllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Get("/health", h.HealthCheck)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes sets up all API routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Post("/validate", h.ValidateOrder)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetOrder)
				r.Put("/", h.UpdateOrder)
				r.Delete("/", h.DeleteOrder)
				r.Post("/issue-certificate", h.IssueCertificate)
				r.Get("/certificate", h.GetCertificate)
			})
		})

		r.Post("/intake/validate", h.ValidateIntake)

		r.Get("/chemicals", h.ListChemicals)
		r.Post("/dosage", h.CalculateDosage)
		r.Get("/pests", h.ListPests)

		r.Get("/dashboard/{clientId}", h.ClientDashboard)
		r.Get("/agenda", h.Agenda)
		r.Get("/agenda/groups", h.AgendaGroups)
		r.Get("/stats", h.Stats)
		r.Get("/map", h.MapPoints)
	})
}
