// Package models defines the domain types shared by the tree engine and the API.
package models

import "time"

// TreeNode is one labeled unit of a parsed document: a markdown heading or a
// JSON/YAML value. Children keep source order.
type TreeNode struct {
	Label    string     `json:"label"`
	Type     string     `json:"type,omitempty"`
	Level    int        `json:"level,omitempty"` // markdown headings only
	Children []TreeNode `json:"children"`
}

// Entry kinds.
const (
	KindFile   = "file"
	KindFolder = "folder"
)

// DirectoryEntry is one item of a folder listing.
type DirectoryEntry struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Type      string    `json:"type"` // "file" or "folder"
	Extension string    `json:"extension,omitempty"`
	Modified  time.Time `json:"modified,omitzero"`
	Created   time.Time `json:"created,omitzero"`
}

// IsFolder reports whether the entry is a folder.
func (e DirectoryEntry) IsFolder() bool {
	return e.Type == KindFolder
}

// Change event kinds.
const (
	EventCreated  = "created"
	EventModified = "modified"
	EventDeleted  = "deleted"
	EventMoved    = "moved"
)

// ChangeEvent is a file mutation observed under a project root.
// A move within the tree is one moved event whose Path is the destination.
// A file moved out of the tree yields moved with its old path.
type ChangeEvent struct {
	Type      string `json:"event_type"`
	Path      string `json:"path"`
	ProjectID string `json:"project_id"`
}

// Project is a registered folder.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Path        string    `json:"path"`
	Slug        string    `json:"slug"`
	CreatedAt   time.Time `json:"created_at"`
}
