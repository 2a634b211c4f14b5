package catalog

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads the user catalog file when it changes on disk.
// Editors save via rename, so the parent directory is watched rather
// than the file itself, and events are debounced before reloading.
type Watcher struct {
	catalog   *Catalog
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	lastHit time.Time
	dirty   bool
}

// NewWatcher creates a watcher for the catalog's user file. The catalog
// must have been created with a non-empty path.
func NewWatcher(c *Catalog, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		catalog:   c,
		fsWatcher: fsWatcher,
		debounce:  debounce,
		logger:    logger.With("component", "catalog_watcher"),
	}, nil
}

// Start begins watching. Events are handled until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	dir, err := filepath.Abs(filepath.Dir(w.catalog.Path()))
	if err != nil {
		return err
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}
	w.logger.Info("watching catalog file", "path", w.catalog.Path())

	go w.eventLoop(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

func (w *Watcher) eventLoop(ctx context.Context) {
	target, _ := filepath.Abs(w.catalog.Path())
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if abs, _ := filepath.Abs(event.Name); abs != target {
				continue
			}
			if event.Op.Has(fsnotify.Chmod) {
				continue
			}
			w.mu.Lock()
			w.lastHit = time.Now()
			w.dirty = true
			w.mu.Unlock()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("catalog watcher error", "error", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			due := w.dirty && time.Since(w.lastHit) >= w.debounce
			if due {
				w.dirty = false
			}
			w.mu.Unlock()

			if !due {
				continue
			}
			if err := w.catalog.Reload(); err != nil {
				w.logger.Error("catalog reload failed, keeping previous inventory", "error", err)
			}
		}
	}
}
