// Package viewer ties the project registry to scanning, previews and live
// change propagation.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/fileviewer/internal/apperr"
	"github.com/starford/fileviewer/internal/checksum"
	"github.com/starford/fileviewer/internal/metrics"
	"github.com/starford/fileviewer/internal/models"
	"github.com/starford/fileviewer/internal/parser"
	"github.com/starford/fileviewer/internal/project"
	"github.com/starford/fileviewer/internal/render"
	"github.com/starford/fileviewer/internal/scanner"
	"github.com/starford/fileviewer/internal/storage"
	"github.com/starford/fileviewer/internal/watcher"
)

// Broadcaster receives change events from project watchers.
type Broadcaster interface {
	Broadcast(ev models.ChangeEvent) int
}

// ProjectView is a project plus its live watch state.
type ProjectView struct {
	models.Project
	Watching bool `json:"watching"`
}

// Listing is a one-level folder listing inside a project.
type Listing struct {
	ProjectID string                  `json:"project_id"`
	Path      string                  `json:"path"`
	Items     []models.DirectoryEntry `json:"items"`
}

// Preview is a parsed file with its rendered form.
type Preview struct {
	ProjectID string `json:"project_id"`
	Path      string `json:"path"`
	Name      string `json:"name"`
	parser.Result
	HTML     string `json:"html,omitempty"`
	Checksum string `json:"checksum"`
}

// AddProjectInput describes a folder to register.
type AddProjectInput struct {
	Path        string
	Title       string
	Description string
}

// watchSet is the part of watcher.Manager the service drives.
type watchSet interface {
	Watch(projectID, root string) error
	Unwatch(projectID string) bool
	StopAll()
	Count() int
	Watching() []string
}

var _ watchSet = (*watcher.Manager)(nil)

// Service coordinates the registry, scanner, watchers and broadcaster.
type Service struct {
	registry    project.Registry
	scanner     *scanner.Scanner
	watchers    watchSet
	broadcaster Broadcaster
	renderer    render.Converter
	logger      *slog.Logger
}

// NewService creates a service. renderer may be nil, in which case markdown
// previews carry no HTML.
func NewService(reg project.Registry, b Broadcaster, renderer render.Converter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		registry:    reg,
		scanner:     scanner.New(logger),
		broadcaster: b,
		renderer:    renderer,
		logger:      logger,
	}
	s.watchers = watcher.NewManager(s.onChange, logger)
	return s
}

func (s *Service) onChange(ev models.ChangeEvent) {
	metrics.RecordWatcherEvent(ev.Type)
	n := 0
	if s.broadcaster != nil {
		n = s.broadcaster.Broadcast(ev)
	}
	s.logger.Debug("viewer: change broadcast",
		slog.String("event_type", ev.Type),
		slog.String("path", ev.Path),
		slog.String("project_id", ev.ProjectID),
		slog.Int("delivered", n))
}

// StartAll starts a watcher for every registered project. Projects whose
// folder cannot be watched are logged and left unwatched.
func (s *Service) StartAll(_ context.Context) error {
	ps, err := s.registry.List()
	if err != nil {
		return err
	}
	for _, p := range ps {
		if err := s.watchers.Watch(p.ID, p.Path); err != nil {
			s.logger.Warn("viewer: watch failed",
				slog.String("project_id", p.ID),
				slog.String("path", p.Path),
				slog.String("error", err.Error()))
		}
	}
	metrics.SetWatchersActive(s.watchers.Count())
	s.logger.Info("viewer: watchers started", slog.Int("projects", len(ps)), slog.Int("watching", s.watchers.Count()))
	return nil
}

// Shutdown stops every watcher and waits for them.
func (s *Service) Shutdown() {
	s.watchers.StopAll()
	metrics.SetWatchersActive(0)
}

// WatchedCount returns the number of running watchers.
func (s *Service) WatchedCount() int {
	return s.watchers.Count()
}

// ListProjects returns every project.
func (s *Service) ListProjects(_ context.Context) ([]ProjectView, error) {
	ps, err := s.registry.List()
	if err != nil {
		return nil, err
	}
	watching := make(map[string]bool)
	for _, id := range s.watchers.Watching() {
		watching[id] = true
	}
	out := make([]ProjectView, len(ps))
	for i, p := range ps {
		out[i] = ProjectView{Project: p, Watching: watching[p.ID]}
	}
	return out, nil
}

// GetProject looks a project up by id or slug.
func (s *Service) GetProject(_ context.Context, ref string) (ProjectView, error) {
	p, err := s.registry.Resolve(ref)
	if err != nil {
		return ProjectView{}, err
	}
	return s.view(p), nil
}

// AddProject registers a folder and starts watching it. If the watcher cannot
// start the registration is rolled back.
func (s *Service) AddProject(_ context.Context, in AddProjectInput) (ProjectView, error) {
	dir, err := checkFolder(in.Path)
	if err != nil {
		return ProjectView{}, err
	}
	p, err := s.registry.Create(models.Project{
		Title:       in.Title,
		Description: in.Description,
		Path:        dir,
	})
	if err != nil {
		return ProjectView{}, err
	}
	if err := s.watchers.Watch(p.ID, p.Path); err != nil {
		if derr := s.registry.Delete(p.ID); derr != nil {
			s.logger.Error("viewer: rollback failed", slog.String("project_id", p.ID), slog.String("error", derr.Error()))
		}
		return ProjectView{}, fmt.Errorf("viewer: watch %s: %w", p.Path, err)
	}
	metrics.SetWatchersActive(s.watchers.Count())
	s.logger.Info("viewer: project added", slog.String("project_id", p.ID), slog.String("path", p.Path))
	return s.view(p), nil
}

// UpdateProject changes project metadata. A new path is watched before the
// record changes; if either step fails the project keeps its old path and
// watcher.
func (s *Service) UpdateProject(_ context.Context, ref string, u project.Update) (ProjectView, error) {
	p, err := s.registry.Resolve(ref)
	if err != nil {
		return ProjectView{}, err
	}
	oldPath := p.Path
	moving := false
	if u.Path != nil {
		dir, err := checkFolder(*u.Path)
		if err != nil {
			return ProjectView{}, err
		}
		u.Path = &dir
		moving = dir != oldPath
	}

	if moving {
		if err := s.watchers.Watch(p.ID, *u.Path); err != nil {
			return ProjectView{}, fmt.Errorf("viewer: watch %s: %w", *u.Path, err)
		}
	}
	updated, err := s.registry.Update(p.ID, u)
	if err != nil {
		if moving {
			s.restoreWatch(p.ID, oldPath)
		}
		return ProjectView{}, err
	}
	if moving {
		metrics.SetWatchersActive(s.watchers.Count())
		s.logger.Info("viewer: project moved",
			slog.String("project_id", p.ID),
			slog.String("from", oldPath),
			slog.String("to", updated.Path))
	}
	return s.view(updated), nil
}

// restoreWatch puts the watcher back on path after a failed move.
func (s *Service) restoreWatch(projectID, path string) {
	if err := s.watchers.Watch(projectID, path); err != nil {
		s.watchers.Unwatch(projectID)
		s.logger.Error("viewer: restore watch failed",
			slog.String("project_id", projectID),
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	metrics.SetWatchersActive(s.watchers.Count())
}

// RemoveProject stops the project's watcher, waits for it, then deletes the
// record.
func (s *Service) RemoveProject(_ context.Context, ref string) error {
	p, err := s.registry.Resolve(ref)
	if err != nil {
		return err
	}
	s.watchers.Unwatch(p.ID)
	metrics.SetWatchersActive(s.watchers.Count())
	if err := s.registry.Delete(p.ID); err != nil {
		return err
	}
	s.logger.Info("viewer: project removed", slog.String("project_id", p.ID))
	return nil
}

// Browse lists one folder of a project. rel is relative to the project root.
func (s *Service) Browse(_ context.Context, ref, rel string) (*Listing, error) {
	p, root, err := s.open(ref)
	if err != nil {
		return nil, err
	}
	dir, err := root.Resolve(rel)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	items, err := s.scanner.List(dir)
	metrics.RecordScan("list", time.Since(start))
	if err != nil {
		return nil, scanError(err)
	}
	return &Listing{ProjectID: p.ID, Path: dir, Items: items}, nil
}

// Scan lists a project folder and everything below it.
func (s *Service) Scan(_ context.Context, ref, rel string) (*scanner.Cache, error) {
	_, root, err := s.open(ref)
	if err != nil {
		return nil, err
	}
	dir, err := root.Resolve(rel)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	c, err := s.scanner.ScanRecursive(dir)
	metrics.RecordScan("recursive", time.Since(start))
	if err != nil {
		return nil, scanError(err)
	}
	return c, nil
}

// Preview parses one file of a project. Parse failures come back as an error
// node in the tree, not as an error.
func (s *Service) Preview(_ context.Context, ref, rel string) (*Preview, error) {
	p, root, err := s.open(ref)
	if err != nil {
		return nil, err
	}
	path, err := root.Resolve(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("viewer: %s: %w", rel, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("viewer: stat %s: %w", rel, err)
	}
	if info.IsDir() || !scanner.Supported(info.Name()) {
		return nil, fmt.Errorf("viewer: %s is not a previewable file: %w", rel, apperr.ErrInvalidInput)
	}

	res := parser.ParseFile(path)
	metrics.RecordParse(string(res.Format), res.Error == "")

	out := &Preview{
		ProjectID: p.ID,
		Path:      path,
		Name:      info.Name(),
		Result:    res,
		Checksum:  checksum.Sum([]byte(res.Content)),
	}
	if res.Format == parser.FormatMarkdown && res.Error == "" && s.renderer != nil {
		html, err := s.renderer.Convert(res.Content)
		if err != nil {
			s.logger.Warn("viewer: render failed", slog.String("path", path), slog.String("error", err.Error()))
		} else {
			out.HTML = html
		}
	}
	return out, nil
}

// open returns the project and its confined root for ref.
func (s *Service) open(ref string) (models.Project, *storage.FS, error) {
	p, err := s.registry.Resolve(ref)
	if err != nil {
		return models.Project{}, nil, err
	}
	root, err := storage.NewFS(p.Path)
	if err != nil {
		return models.Project{}, nil, err
	}
	return p, root, nil
}

func (s *Service) view(p models.Project) ProjectView {
	watching := false
	for _, id := range s.watchers.Watching() {
		if id == p.ID {
			watching = true
			break
		}
	}
	return ProjectView{Project: p, Watching: watching}
}

// checkFolder returns the absolute form of dir after confirming it is an
// existing folder.
func checkFolder(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("viewer: path is required: %w", apperr.ErrInvalidInput)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("viewer: resolve %s: %w", dir, apperr.ErrInvalidInput)
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("viewer: %s: %w", abs, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("viewer: stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("viewer: %s is not a folder: %w", abs, apperr.ErrInvalidInput)
	}
	return abs, nil
}

// scanError tags scanner root failures with the matching sentinel.
func scanError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("viewer: %w: %w", apperr.ErrNotFound, err)
	case errors.Is(err, scanner.ErrNotDirectory):
		return fmt.Errorf("viewer: %w: %w", apperr.ErrInvalidInput, err)
	}
	return err
}
