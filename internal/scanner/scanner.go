// Package scanner lists project folders, either one level at a time or as a
// full recursive cache keyed by folder path.
package scanner

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/starford/fileviewer/internal/models"
)

// ErrNotDirectory is returned when a scan target is a file.
var ErrNotDirectory = errors.New("not a directory")

// excludedDirs are dependency and build caches that are never listed or
// descended into.
var excludedDirs = map[string]struct{}{
	"node_modules": {},
	"__pycache__":  {},
	"venv":         {},
	"build":        {},
	"dist":         {},
	"target":       {},
}

var supportedExts = map[string]struct{}{
	".md":   {},
	".json": {},
	".yml":  {},
	".yaml": {},
	".mmd":  {},
}

// SkipDir reports whether a folder with this name is hidden or excluded.
func SkipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := excludedDirs[name]
	return ok
}

// Supported reports whether a file name has a listable extension.
func Supported(name string) bool {
	_, ok := supportedExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ScanError reports a failure to access the folder a scan was started on.
type ScanError struct {
	Op   string
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scanner: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Cache maps every folder reached by a recursive scan to its listing, in
// depth-first visit order.
type Cache struct {
	Root    string                                                  `json:"root"`
	Folders *orderedmap.OrderedMap[string, []models.DirectoryEntry] `json:"folders"`
}

// Get returns the listing cached for folder.
func (c *Cache) Get(folder string) ([]models.DirectoryEntry, bool) {
	return c.Folders.Get(folder)
}

// Len returns the number of cached folders.
func (c *Cache) Len() int {
	return c.Folders.Len()
}

// Paths returns the cached folder paths in visit order.
func (c *Cache) Paths() []string {
	out := make([]string, 0, c.Folders.Len())
	for p := c.Folders.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// Scanner reads folder listings. It holds no state besides the logger and is
// safe for concurrent use.
type Scanner struct {
	logger *slog.Logger
}

// New creates a Scanner. Folders skipped during recursive scans are reported
// on logger at warn level.
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// List returns the sorted listing of a single folder.
func (s *Scanner) List(folder string) ([]models.DirectoryEntry, error) {
	abs, err := openRoot(folder)
	if err != nil {
		return nil, err
	}
	entries, err := s.readFolder(abs)
	if err != nil {
		return nil, &ScanError{Op: "read", Path: abs, Err: err}
	}
	return entries, nil
}

// ScanRecursive lists root and every reachable folder below it. Sub-folders
// that cannot be read are logged and left out; only a failure on root itself
// is returned.
func (s *Scanner) ScanRecursive(root string) (*Cache, error) {
	abs, err := openRoot(root)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		Root:    abs,
		Folders: orderedmap.New[string, []models.DirectoryEntry](),
	}
	visited := make(map[string]struct{})

	entries, err := s.readFolder(abs)
	if err != nil {
		return nil, &ScanError{Op: "read", Path: abs, Err: err}
	}
	markVisited(visited, abs)
	c.Folders.Set(abs, entries)
	s.descend(entries, c, visited)

	return c, nil
}

func (s *Scanner) descend(entries []models.DirectoryEntry, c *Cache, visited map[string]struct{}) {
	for _, e := range entries {
		if !e.IsFolder() {
			continue
		}
		if !markVisited(visited, e.Path) {
			continue
		}
		children, err := s.readFolder(e.Path)
		if err != nil {
			s.logger.Warn("scanner: skipping unreadable folder",
				slog.String("path", e.Path),
				slog.String("error", err.Error()))
			continue
		}
		c.Folders.Set(e.Path, children)
		s.descend(children, c, visited)
	}
}

// markVisited records the real path of dir and reports whether it was new.
// Symlinked folders pointing at an already scanned directory are not revisited.
func markVisited(visited map[string]struct{}, dir string) bool {
	key := dir
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		key = real
	}
	if _, ok := visited[key]; ok {
		return false
	}
	visited[key] = struct{}{}
	return true
}

func openRoot(folder string) (string, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return "", &ScanError{Op: "resolve", Path: folder, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &ScanError{Op: "stat", Path: abs, Err: err}
	}
	if !info.IsDir() {
		return "", &ScanError{Op: "open", Path: abs, Err: ErrNotDirectory}
	}
	return abs, nil
}

// readFolder builds the filtered, sorted listing of dir.
func (s *Scanner) readFolder(dir string) ([]models.DirectoryEntry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var folders, files []models.DirectoryEntry
	for _, de := range des {
		name := de.Name()
		full := filepath.Join(dir, name)

		// Stat follows symlinks so linked folders and files list as their targets.
		info, err := os.Stat(full)
		if err != nil {
			s.logger.Debug("scanner: stat failed", slog.String("path", full), slog.String("error", err.Error()))
			continue
		}

		if info.IsDir() {
			if SkipDir(name) {
				continue
			}
			folders = append(folders, models.DirectoryEntry{
				Name:     name,
				Path:     full,
				Type:     models.KindFolder,
				Modified: info.ModTime(),
			})
			continue
		}

		if !info.Mode().IsRegular() || !Supported(name) {
			continue
		}
		files = append(files, models.DirectoryEntry{
			Name:      name,
			Path:      full,
			Type:      models.KindFile,
			Extension: strings.ToLower(filepath.Ext(name)),
			Modified:  info.ModTime(),
			Created:   createdTime(full, info),
		})
	}

	sortEntries(folders, files)
	out := make([]models.DirectoryEntry, 0, len(folders)+len(files))
	out = append(out, folders...)
	return append(out, files...), nil
}

// sortEntries orders folders by case-insensitive name and files newest first.
// Ties fall back to the exact name so listings are stable.
func sortEntries(folders, files []models.DirectoryEntry) {
	slices.SortStableFunc(folders, func(a, b models.DirectoryEntry) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	slices.SortStableFunc(files, func(a, b models.DirectoryEntry) int {
		if c := b.Created.Compare(a.Created); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}
