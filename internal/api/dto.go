package api

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/fileviewer/internal/viewer"
)

// CreateProjectRequest is the request body for registering a folder.
type CreateProjectRequest struct {
	Path        string `json:"path" example:"/home/me/notes"`
	Title       string `json:"title,omitempty" example:"Notes"`
	Description string `json:"description,omitempty"`
}

// Validate checks the request fields.
func (r CreateProjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Title, validation.Length(0, 200)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
	)
}

// UpdateProjectRequest changes project fields; omitted fields are kept.
type UpdateProjectRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Path        *string `json:"path,omitempty"`
}

var errEmptyUpdate = errors.New("at least one of title, description or path is required")

// Validate checks the request fields.
func (r UpdateProjectRequest) Validate() error {
	if r.Title == nil && r.Description == nil && r.Path == nil {
		return errEmptyUpdate
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(0, 200)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
		validation.Field(&r.Path, validation.NilOrNotEmpty),
	)
}

// ProjectListResponse wraps the project list.
type ProjectListResponse struct {
	Projects []viewer.ProjectView `json:"projects"`
}

// StatusResponse is returned by health and delete endpoints.
type StatusResponse struct {
	Status string `json:"status"`
}
