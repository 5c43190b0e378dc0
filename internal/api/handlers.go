package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fileviewer/internal/checksum"
	"github.com/starford/fileviewer/internal/project"
	"github.com/starford/fileviewer/internal/viewer"
)

// Handler holds API route handlers.
type Handler struct {
	svc *viewer.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *viewer.Service) *Handler {
	return &Handler{svc: svc}
}

// relPath extracts the project-relative path from the URL wildcard.
// Supports encoded slashes (e.g. docs%2Fguide.md).
func relPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListProjects handles GET /api/projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProjects(r.Context())
	if err != nil {
		writeError(w, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{Projects: ps})
}

// CreateProject handles POST /api/projects.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	p, err := h.svc.AddProject(r.Context(), viewer.AddProjectInput{
		Path:        req.Path,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, "create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProject handles GET /api/projects/{ref}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProject(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, "get project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProject handles PUT /api/projects/{ref}.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	p, err := h.svc.UpdateProject(r.Context(), chi.URLParam(r, "ref"), project.Update{
		Title:       req.Title,
		Description: req.Description,
		Path:        req.Path,
	})
	if err != nil {
		writeError(w, "update project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProject handles DELETE /api/projects/{ref}.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveProject(r.Context(), chi.URLParam(r, "ref")); err != nil {
		writeError(w, "delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Browse handles GET /api/projects/{ref}/browse/*.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.Browse(r.Context(), chi.URLParam(r, "ref"), relPath(r))
	if err != nil {
		writeError(w, "browse", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// Scan handles GET /api/projects/{ref}/scan/*.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Scan(r.Context(), chi.URLParam(r, "ref"), relPath(r))
	if err != nil {
		writeError(w, "scan", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// File handles GET /api/projects/{ref}/file/*. The ETag is the content
// checksum; a matching If-None-Match yields 304.
func (h *Handler) File(w http.ResponseWriter, r *http.Request) {
	path := relPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	p, err := h.svc.Preview(r.Context(), chi.URLParam(r, "ref"), path)
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	etag := checksum.ETag(p.Checksum)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if checksum.Matches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
