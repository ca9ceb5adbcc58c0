package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all analysis routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/statistics", h.HandleGetStatistics)
	r.Post("/portfolio/evaluate", h.HandleEvaluate)

	r.Route("/frontier", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", h.HandleCreateRun)
			r.Get("/", h.HandleListRuns)
			r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				h.HandleGetRun(w, r, id)
			})
		})

		r.Route("/latest", func(r chi.Router) {
			r.Get("/", h.HandleGetLatest)
			r.Get("/chart.png", h.HandleGetLatestChart)
			r.Get("/envelope.csv", h.HandleGetLatestEnvelope)
		})

		r.Get("/stream", h.HandleStream)
	})
}
