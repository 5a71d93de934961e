package templating

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates an Environment's caches when files under its template
// roots change. Bursts of events are collapsed into a single invalidation.
// It is meant for development; without it new templates only show up after
// a restart or an explicit InvalidateCaches.
type Watcher struct {
	env      *Environment
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher watches the given roots, and every directory below them, on
// behalf of env. Roots that do not exist are skipped.
func NewWatcher(env *Environment, debounce time.Duration, roots ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		env:      env,
		logger:   env.logger.With("component", "watcher"),
		watcher:  fsw,
		debounce: debounce,
	}
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			w.logger.Warn("Skipping missing template root", "root", root)
			continue
		}
		if err := w.addRecursive(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		_ = w.watcher.Close()
	}()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			w.logger.Debug("Template file changed", "path", event.Name, "op", event.Op.String())
			if !pending {
				pending = true
				timer.Reset(w.debounce)
			}
		case <-timer.C:
			pending = false
			w.env.InvalidateCaches()
			w.logger.Info("Template change detected, caches invalidated")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Template watcher error", "error", err)
		}
	}
}
