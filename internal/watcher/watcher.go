// Package watcher observes project folders with fsnotify and reports file
// changes as models.ChangeEvent values.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/fileviewer/internal/models"
	"github.com/starford/fileviewer/internal/scanner"
)

// Handler receives change events. It runs on the watcher's dispatch
// goroutine, never on the fsnotify loop.
type Handler func(models.ChangeEvent)

const (
	// eventBuffer is the capacity of the hand-off channel between the fsnotify
	// loop and the dispatch goroutine.
	eventBuffer = 256

	// renameWindow is how long a rename waits for the Create naming its
	// destination.
	renameWindow = 100 * time.Millisecond
)

var watchedExts = map[string]struct{}{
	".md":   {},
	".json": {},
	".yml":  {},
	".yaml": {},
}

// StartError reports that the root could not be attached to fsnotify.
type StartError struct {
	Path string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("watcher: start %s: %v", e.Path, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Watcher monitors one root folder recursively.
type Watcher struct {
	root      string
	projectID string
	handler   Handler
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	fsw     *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates an idle watcher for root. Events carry projectID.
func New(root, projectID string, handler Handler, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:      root,
		projectID: projectID,
		handler:   handler,
		logger:    logger,
	}
}

// Root returns the watched folder.
func (w *Watcher) Root() string { return w.root }

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start attaches to root and every folder below it. Calling Start on a
// running watcher does nothing.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return &StartError{Path: w.root, Err: err}
	}
	if !info.IsDir() {
		return &StartError{Path: w.root, Err: scanner.ErrNotDirectory}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return &StartError{Path: w.root, Err: err}
	}
	if err := addDirsRecursive(fsw, w.root, true); err != nil {
		_ = fsw.Close()
		return &StartError{Path: w.root, Err: err}
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.running = true

	events := make(chan models.ChangeEvent, eventBuffer)
	w.wg.Add(2)
	go w.loop(fsw, events, w.done)
	go w.dispatch(events, w.done)

	w.logger.Info("watcher: started", slog.String("root", w.root), slog.String("project_id", w.projectID))
	return nil
}

// Stop halts monitoring and waits until no handler call is in flight.
// Stopping an idle watcher does nothing.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.done)
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()

	_ = fsw.Close()
	w.wg.Wait()
	w.logger.Info("watcher: stopped", slog.String("root", w.root), slog.String("project_id", w.projectID))
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, out chan<- models.ChangeEvent, done <-chan struct{}) {
	defer w.wg.Done()

	// pending holds the source of a rename until its Create arrives or the
	// pairing window elapses.
	var pending string
	pairTimer := time.NewTimer(renameWindow)
	pairTimer.Stop()
	defer pairTimer.Stop()

	emit := func(kind, path string) bool {
		w.logger.Debug("watcher: change", slog.String("op", kind), slog.String("path", path))
		select {
		case out <- models.ChangeEvent{Type: kind, Path: path, ProjectID: w.projectID}:
			return true
		case <-done:
			return false
		}
	}
	flush := func() bool {
		if pending == "" {
			return true
		}
		path := pending
		pending = ""
		pairTimer.Stop()
		return emit(models.EventMoved, path)
	}

	for {
		select {
		case <-done:
			return

		case <-pairTimer.C:
			if !flush() {
				return
			}

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}

			// New directories join the watch list; directory events are not forwarded.
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addDirsRecursive(fsw, ev.Name, false); err != nil {
						w.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", err.Error()))
					}
					continue
				}
			}

			kind, ok := classify(ev.Op)
			if !ok || !relevant(ev.Name) {
				continue
			}

			switch {
			case kind == models.EventMoved:
				if !flush() {
					return
				}
				pending = ev.Name
				pairTimer.Reset(renameWindow)
				continue
			case kind == models.EventCreated && pending != "":
				pending = ""
				pairTimer.Stop()
				kind = models.EventMoved
			default:
				if !flush() {
					return
				}
			}
			if !emit(kind, ev.Name) {
				return
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher: error", slog.String("root", w.root), slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) dispatch(in <-chan models.ChangeEvent, done <-chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case <-done:
			return
		case ev := <-in:
			if w.handler != nil {
				w.handler(ev)
			}
		}
	}
}

// classify maps an fsnotify op to an event kind. Chmod alone is ignored.
func classify(op fsnotify.Op) (string, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return models.EventCreated, true
	case op.Has(fsnotify.Write):
		return models.EventModified, true
	case op.Has(fsnotify.Remove):
		return models.EventDeleted, true
	case op.Has(fsnotify.Rename):
		return models.EventMoved, true
	}
	return "", false
}

func relevant(path string) bool {
	_, ok := watchedExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// addDirsRecursive adds root and its sub-folders, skipping hidden and excluded
// folders. Only a failure on root is returned when strict is set; other
// folders that vanish or cannot be read are skipped.
func addDirsRecursive(fsw *fsnotify.Watcher, root string, strict bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && strict {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && scanner.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			if path == root && strict {
				return err
			}
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return nil
		}
		return nil
	})
}
