package profile

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/RyanLisse/opencode-rs/internal/event"
	"github.com/RyanLisse/opencode-rs/internal/logging"
)

// Watcher reloads the profile table when the personas file changes and
// publishes a profile.reloaded event after each successful reload.
type Watcher struct {
	table   *Table
	bus     *event.Bus
	logger  *logging.Logger
	watcher *fsnotify.Watcher

	// path is the watched personas file, cleaned for comparison
	path string

	stopCh chan struct{}
}

// NewWatcher creates a watcher for the table's personas file. The containing
// directory is watched rather than the file itself so editor save strategies
// that replace the file (write to temp, rename over) are still observed.
func NewWatcher(table *Table, bus *event.Bus, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	path := filepath.Clean(table.Path())
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	return &Watcher{
		table:   table,
		bus:     bus,
		logger:  logger.WithComponent("profile-watcher"),
		watcher: fw,
		path:    path,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for personas file changes
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops the watcher and cleans up resources
func (w *Watcher) Stop() {
	close(w.stopCh)
	_ = w.watcher.Close()
}

// watchLoop processes filesystem events
func (w *Watcher) watchLoop() {
	// Debounce events - many editors create multiple events for a single save
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	pending := false

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Only care about operations that change file contents
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}

			pending = true
			debounceTimer.Reset(50 * time.Millisecond)

		case <-debounceTimer.C:
			if !pending {
				continue
			}
			pending = false
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("personas watcher error", "error", err)
		}
	}
}

// reload re-reads the personas file and announces the result
func (w *Watcher) reload() {
	count, err := w.table.Reload()
	if err != nil {
		w.logger.Warn("failed to reload personas", "path", w.path, "error", err)
		return
	}

	w.logger.Info("personas reloaded", "path", w.path, "count", count)
	if w.bus != nil {
		w.bus.Publish(event.NewProfilesReloadedEvent(w.path, count))
	}
}
