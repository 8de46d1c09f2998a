package catalog

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher triggers catalog reloads when the source file changes on disk.
// Events are debounced so bulk writes produce a single reload. A reload
// that fails leaves the previous snapshot live.
type Watcher struct {
	path     string
	debounce time.Duration
	reload   func(context.Context) error
	logger   *slog.Logger
}

// NewWatcher creates a catalog file watcher. reload is invoked after the
// debounce window closes.
func NewWatcher(path string, debounce time.Duration, reload func(context.Context) error, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{path: path, debounce: debounce, reload: reload, logger: logger}
}

// Run watches until the context is cancelled. The parent directory is
// watched rather than the file itself so atomic rename-into-place writes
// are observed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(w.path)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog watcher error", "error", err)

		case <-timerC:
			timer = nil
			timerC = nil
			w.logger.Info("catalog change detected, reloading", "path", w.path)
			if err := w.reload(ctx); err != nil {
				w.logger.Error("catalog reload failed, keeping previous snapshot", "error", err)
			}
		}
	}
}
