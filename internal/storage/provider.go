// Package storage confines file access to a project folder.
package storage

// Provider resolves paths relative to a project root.
type Provider interface {
	// Root returns the absolute project folder.
	Root() string
	// Resolve returns the absolute path for rel, rejecting paths that leave the root.
	Resolve(rel string) (string, error)
}
