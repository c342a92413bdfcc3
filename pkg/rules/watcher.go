package rules

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// OverridesWatcher watches a user-overrides file and reapplies it on change.
// Changes are debounced so editors that write in several bursts trigger a
// single reload.
type OverridesWatcher struct {
	path     string
	store    *Store
	logger   *slog.Logger
	debounce time.Duration
}

// NewOverridesWatcher creates a watcher for the overrides file at path.
func NewOverridesWatcher(path string, store *Store, debounce time.Duration) *OverridesWatcher {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &OverridesWatcher{
		path:     path,
		store:    store,
		logger:   slog.Default().With("component", "rules.watcher"),
		debounce: debounce,
	}
}

// Watch blocks until ctx is cancelled, reloading user limit overrides
// whenever the file changes. The containing directory is watched so
// atomic-rename saves are seen.
func (w *OverridesWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}

	w.logger.Info("overrides watcher started", "path", w.path, "debounce_ms", w.debounce.Milliseconds())

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("overrides watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload(ctx)

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", werr)
		}
	}
}

func (w *OverridesWatcher) reload(ctx context.Context) {
	entries, err := LoadOverridesFile(w.path)
	if err != nil {
		w.logger.Warn("overrides reload failed", "error", err)
		return
	}

	applied := 0
	for _, entry := range entries {
		if _, _, err := w.store.SetUserLimit(ctx, entry.ID, entry.Limit); err != nil {
			w.logger.Warn("failed to apply override", "user_id", entry.ID, "error", err)
			continue
		}
		applied++
	}
	w.logger.Info("overrides reloaded", "applied", applied)
}
