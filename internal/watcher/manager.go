package watcher

import (
	"log/slog"
	"sort"
	"sync"
)

// Manager owns one Watcher per project.
type Manager struct {
	handler Handler
	logger  *slog.Logger

	mu       sync.Mutex
	watchers map[string]*Watcher
}

// NewManager creates a manager whose watchers all report to handler.
func NewManager(handler Handler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		handler:  handler,
		logger:   logger,
		watchers: make(map[string]*Watcher),
	}
}

// Watch starts a watcher for projectID on root. A watcher already registered
// for the project is stopped and replaced.
func (m *Manager) Watch(projectID, root string) error {
	w := New(root, projectID, m.handler, m.logger)
	if err := w.Start(); err != nil {
		return err
	}

	m.mu.Lock()
	old := m.watchers[projectID]
	m.watchers[projectID] = w
	m.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	return nil
}

// Unwatch stops the project's watcher. It reports whether one was registered.
func (m *Manager) Unwatch(projectID string) bool {
	m.mu.Lock()
	w, ok := m.watchers[projectID]
	delete(m.watchers, projectID)
	m.mu.Unlock()

	if ok {
		w.Stop()
	}
	return ok
}

// StopAll stops every watcher and empties the manager.
func (m *Manager) StopAll() {
	m.mu.Lock()
	ws := m.watchers
	m.watchers = make(map[string]*Watcher)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range ws {
		wg.Add(1)
		go func(w *Watcher) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()
}

// Count returns the number of active watchers.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers)
}

// Watching returns the watched project IDs, sorted.
func (m *Manager) Watching() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.watchers))
	for id := range m.watchers {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}
