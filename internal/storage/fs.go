package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/fileviewer/internal/apperr"
)

// FS implements Provider on the local file system.
type FS struct {
	root string
}

var _ Provider = (*FS)(nil)

// NewFS creates a provider rooted at dir, which must be an existing folder.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: root %s: %w", abs, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s: %w", abs, apperr.ErrInvalidInput)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute project folder.
func (f *FS) Root() string { return f.root }

// Resolve joins rel onto the root. Leading slashes are tolerated so URL
// wildcards can be passed straight through; ".." segments that climb out of
// the root are rejected with apperr.ErrForbidden.
func (f *FS) Resolve(rel string) (string, error) {
	rel = strings.TrimLeft(filepath.FromSlash(rel), string(os.PathSeparator))
	if rel == "" || rel == "." {
		return f.root, nil
	}
	abs := filepath.Join(f.root, filepath.Clean(rel))
	if !within(f.root, abs) {
		return "", fmt.Errorf("storage: %s: %w", rel, apperr.ErrForbidden)
	}

	// A symlink may point anywhere; follow it and check again.
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		rootReal, rerr := filepath.EvalSymlinks(f.root)
		if rerr == nil && !within(rootReal, real) {
			return "", fmt.Errorf("storage: %s: %w", rel, apperr.ErrForbidden)
		}
	}
	return abs, nil
}

func within(root, p string) bool {
	return p == root || strings.HasPrefix(p, root+string(os.PathSeparator))
}
