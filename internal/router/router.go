// Package router sets up all HTTP routes and middleware chains for the
// scholarly content API. Routes are grouped by resource: categories and
// files under /api/v1.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"scholarly/internal/handlers"
	"scholarly/internal/middleware"
)

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(categories *handlers.Categories, files *handlers.Files) chi.Router {
	r := chi.NewRouter()

	// Global middleware — applied to every request.
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	// Health check.
	r.Get("/health", healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categories.List)
			r.Post("/", categories.Create)
			r.Get("/tree", categories.Tree)
			r.Get("/roots", categories.Roots)
			r.Get("/search", categories.Search)
			r.Get("/popular", categories.Popular)
			r.Get("/empty", categories.Empty)
			r.Get("/stats", categories.Stats)
			r.Put("/reorder", categories.Reorder)
			r.Post("/refresh-counts", categories.RefreshAllCounts)
			r.Get("/slug/{slug}", categories.GetBySlug)
			r.Get("/path/*", categories.GetByPath)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", categories.Get)
				r.Put("/", categories.Update)
				r.Delete("/", categories.Delete)
				r.Get("/children", categories.Children)
				r.Get("/descendants", categories.Descendants)
				r.Get("/ancestors", categories.Ancestors)
				r.Put("/move", categories.Move)
				r.Post("/activate", categories.Activate)
				r.Post("/deactivate", categories.Deactivate)
				r.Post("/refresh-counts", categories.RefreshCounts)
			})
		})

		r.Route("/files", func(r chi.Router) {
			r.Get("/", files.List)
			r.Post("/", files.Upload)
			r.Get("/search", files.Search)
			r.Get("/popular", files.Popular)
			r.Get("/orphaned", files.Orphaned)
			r.Post("/cleanup-orphaned", files.CleanupOrphaned)
			r.Get("/stats", files.Stats)
			r.Put("/visibility", files.SetVisibility)
			r.Get("/article/{id}", files.ByArticle)
			r.Get("/paper/{id}", files.ByPaper)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", files.Get)
				r.Put("/", files.Update)
				r.Delete("/", files.Delete)
				r.Get("/download", files.Download)
				r.Get("/thumbnail", files.Thumbnail)
				r.Put("/associate", files.Associate)
				r.Delete("/associations", files.RemoveAssociations)
			})
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
