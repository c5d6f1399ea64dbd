// Package api wires the HTTP surface: request/response models, error
// mapping, and the handlers for job and pipeline endpoints.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/promptdeck/promptdeck-api/internal/api/middleware"
	"github.com/promptdeck/promptdeck-api/internal/api/shared"
)

// RouterDeps carries everything the router needs.
type RouterDeps struct {
	JobHandler      *JobHandler
	PipelineHandler *PipelineHandler
	AuthMiddleware  *middleware.AuthMiddleware
	Logger          *slog.Logger
}

// NewRouter builds the chi router. All routes except /health require a valid
// Bearer token.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Trace(deps.Logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(deps.AuthMiddleware.Authenticate)

		r.Route("/pipeline", func(r chi.Router) {
			r.Post("/process", deps.PipelineHandler.Process)
			r.Post("/duplicates", deps.PipelineHandler.Duplicates)
			r.Get("/status", deps.PipelineHandler.GetStatus)
			r.Get("/config", deps.PipelineHandler.GetConfig)
			r.Put("/config", deps.PipelineHandler.UpdateConfig)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", deps.JobHandler.ListJobs)
			r.Get("/stats", deps.JobHandler.GetStats)
			r.Get("/{id}", deps.JobHandler.GetJob)
			r.Delete("/{id}", deps.JobHandler.CancelJob)
		})
	})

	return r
}
