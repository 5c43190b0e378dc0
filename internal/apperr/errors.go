// Package apperr holds the sentinel errors mapped to API status codes.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrForbidden     = errors.New("path outside project")
	ErrInvalidInput  = errors.New("invalid input")
)
