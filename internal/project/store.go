// Package project keeps the registry of watched folders in SQLite.
package project

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/fileviewer/internal/apperr"
	"github.com/starford/fileviewer/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	path        TEXT NOT NULL UNIQUE,
	slug        TEXT NOT NULL UNIQUE,
	created_at  DATETIME NOT NULL
);
`

// Registry is the project store used by the viewer service.
type Registry interface {
	Create(p models.Project) (models.Project, error)
	Get(id string) (models.Project, error)
	GetBySlug(slug string) (models.Project, error)
	Resolve(ref string) (models.Project, error)
	List() ([]models.Project, error)
	Update(id string, u Update) (models.Project, error)
	Delete(id string) error
	Close() error
}

var _ Registry = (*Store)(nil)

// Update lists the fields to change; nil fields are left alone.
type Update struct {
	Title       *string
	Description *string
	Path        *string
}

// Store is a Registry backed by SQLite.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the registry database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("project: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("project: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("project: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Create registers a project. Missing id, title and slug are filled in: the
// title defaults to the folder name and the slug is derived from the title,
// suffixed with a counter when already taken.
func (s *Store) Create(p models.Project) (models.Project, error) {
	p.Path = strings.TrimSpace(p.Path)
	if p.Path == "" {
		return models.Project{}, fmt.Errorf("project: create: path is required: %w", apperr.ErrInvalidInput)
	}
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.Title == "" {
		p.Title = filepath.Base(p.Path)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return models.Project{}, fmt.Errorf("project: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM projects WHERE path = ? OR id = ?`, p.Path, p.ID).Scan(&n); err != nil {
		return models.Project{}, fmt.Errorf("project: check existing: %w", err)
	}
	if n > 0 {
		return models.Project{}, fmt.Errorf("project: %s: %w", p.Path, apperr.ErrAlreadyExists)
	}

	base := p.Slug
	if base == "" {
		base = Slugify(p.Title)
	}
	if base == "" {
		base = p.ID
	}
	if p.Slug, err = uniqueSlug(tx, base, p.ID); err != nil {
		return models.Project{}, err
	}

	_, err = tx.Exec(`
		INSERT INTO projects (id, title, description, path, slug, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Title, p.Description, p.Path, p.Slug, p.CreatedAt)
	if err != nil {
		return models.Project{}, fmt.Errorf("project: insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Project{}, fmt.Errorf("project: commit: %w", err)
	}
	return p, nil
}

// Get returns the project with the given id.
func (s *Store) Get(id string) (models.Project, error) {
	return s.queryOne(`SELECT id, title, description, path, slug, created_at FROM projects WHERE id = ?`, id)
}

// GetBySlug returns the project with the given slug.
func (s *Store) GetBySlug(slug string) (models.Project, error) {
	return s.queryOne(`SELECT id, title, description, path, slug, created_at FROM projects WHERE slug = ?`, slug)
}

// Resolve looks ref up as an id first, then as a slug.
func (s *Store) Resolve(ref string) (models.Project, error) {
	p, err := s.Get(ref)
	if errors.Is(err, apperr.ErrNotFound) {
		return s.GetBySlug(ref)
	}
	return p, err
}

// List returns every project, oldest first.
func (s *Store) List() ([]models.Project, error) {
	rows, err := s.conn.Query(`SELECT id, title, description, path, slug, created_at FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("project: list: %w", err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("project: scan row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update applies u to the project. A new title also regenerates the slug.
func (s *Store) Update(id string, u Update) (models.Project, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return models.Project{}, fmt.Errorf("project: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	p, err := scanProject(tx.QueryRow(`SELECT id, title, description, path, slug, created_at FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project: %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("project: get: %w", err)
	}

	if u.Title != nil && *u.Title != p.Title {
		p.Title = *u.Title
		base := Slugify(p.Title)
		if base == "" {
			base = p.ID
		}
		if p.Slug, err = uniqueSlug(tx, base, p.ID); err != nil {
			return models.Project{}, err
		}
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Path != nil && *u.Path != p.Path {
		var n int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM projects WHERE path = ? AND id <> ?`, *u.Path, id).Scan(&n); err != nil {
			return models.Project{}, fmt.Errorf("project: check path: %w", err)
		}
		if n > 0 {
			return models.Project{}, fmt.Errorf("project: %s: %w", *u.Path, apperr.ErrAlreadyExists)
		}
		p.Path = *u.Path
	}

	_, err = tx.Exec(`UPDATE projects SET title = ?, description = ?, path = ?, slug = ? WHERE id = ?`,
		p.Title, p.Description, p.Path, p.Slug, p.ID)
	if err != nil {
		return models.Project{}, fmt.Errorf("project: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Project{}, fmt.Errorf("project: commit: %w", err)
	}
	return p, nil
}

// Delete removes the project record.
func (s *Store) Delete(id string) error {
	res, err := s.conn.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("project: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project: %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *Store) queryOne(query, arg string) (models.Project, error) {
	p, err := scanProject(s.conn.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project: %s: %w", arg, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("project: get: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (models.Project, error) {
	var p models.Project
	err := r.Scan(&p.ID, &p.Title, &p.Description, &p.Path, &p.Slug, &p.CreatedAt)
	return p, err
}

// uniqueSlug returns base, or base-2, base-3, ... when another project
// already uses it.
func uniqueSlug(tx *sql.Tx, base, selfID string) (string, error) {
	slug := base
	for i := 2; ; i++ {
		var n int
		err := tx.QueryRow(`SELECT COUNT(*) FROM projects WHERE slug = ? AND id <> ?`, slug, selfID).Scan(&n)
		if err != nil {
			return "", fmt.Errorf("project: check slug: %w", err)
		}
		if n == 0 {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
}
