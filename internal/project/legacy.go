package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/starford/fileviewer/internal/apperr"
	"github.com/starford/fileviewer/internal/models"
)

type legacyProject struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Path        string `json:"path"`
	Slug        string `json:"slug"`
}

type legacyFile struct {
	Projects []legacyProject `json:"projects"`
}

// ImportLegacy copies projects from a JSON registry file into the store. Both
// the bare list-of-paths layout and the {"projects": [...]} layout are read.
// Projects whose path is already registered are skipped. A missing file
// imports nothing.
func ImportLegacy(reg Registry, file string) (int, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("project: read legacy registry: %w", err)
	}

	var items []legacyProject
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var paths []string
		if err := json.Unmarshal(trimmed, &paths); err != nil {
			return 0, fmt.Errorf("project: decode legacy path list: %w", err)
		}
		for _, p := range paths {
			items = append(items, legacyProject{
				Path:        p,
				Title:       filepath.Base(p),
				Description: "Migrated project from " + p,
			})
		}
	} else {
		var lf legacyFile
		if err := json.Unmarshal(data, &lf); err != nil {
			return 0, fmt.Errorf("project: decode legacy registry: %w", err)
		}
		items = lf.Projects
	}

	imported := 0
	for _, it := range items {
		if it.Path == "" {
			continue
		}
		id := it.ID
		if id != "" {
			if _, err := reg.Get(id); err == nil {
				id = ""
			}
		}
		_, err := reg.Create(models.Project{
			ID:          id,
			Title:       it.Title,
			Description: it.Description,
			Path:        it.Path,
			Slug:        it.Slug,
		})
		if errors.Is(err, apperr.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
