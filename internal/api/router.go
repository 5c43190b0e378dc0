package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fileviewer/internal/viewer"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *viewer.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.CreateProject)

	r.Route("/projects/{ref}", func(r chi.Router) {
		r.Get("/", h.GetProject)
		r.Put("/", h.UpdateProject)
		r.Delete("/", h.DeleteProject)

		r.Get("/browse", h.Browse)
		r.Get("/browse/*", h.Browse)
		r.Get("/scan", h.Scan)
		r.Get("/scan/*", h.Scan)
		r.Get("/file/*", h.File)
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
