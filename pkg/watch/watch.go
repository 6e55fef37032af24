// Package watch reruns a build whenever one of a fixed set of files changes.
package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for events to settle before
// rebuilding. Editors often write a file in several steps.
const DefaultDebounce = 200 * time.Millisecond

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the settle delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger used for events and rebuild failures.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// RebuildFunc performs one full build.
type RebuildFunc func(ctx context.Context) error

// Watcher calls a RebuildFunc after any of its files is written, created,
// renamed or removed. Rebuilds run one at a time on the goroutine that
// called Run.
type Watcher struct {
	fsw      *fsnotify.Watcher
	files    map[string]struct{}
	rebuild  RebuildFunc
	debounce time.Duration
	logger   *slog.Logger
	builds   int
}

// New watches the parent directories of files. Directories are watched
// instead of the files themselves so that editors that save by renaming a
// temporary file are still seen.
func New(files []string, rebuild RebuildFunc, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		files:    make(map[string]struct{}, len(files)),
		rebuild:  rebuild,
		debounce: DefaultDebounce,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}

	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for dir := range dirs {
		if err = fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.fsw = fsw
	return w, nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Builds returns the number of rebuilds started so far. It is only safe to
// call once Run has returned.
func (w *Watcher) Builds() int { return w.builds }

// relevant reports whether an event should trigger a rebuild.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

// Run blocks until ctx is done or the watcher is closed. Rebuild errors are
// logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("File changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Stop()
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case <-fire:
			fire = nil
			w.builds++
			if err := w.rebuild(ctx); err != nil {
				w.logger.Error("Rebuild failed", "error", err)
				continue
			}
			w.logger.Info("Rebuilt", "builds", w.builds)
		}
	}
}
