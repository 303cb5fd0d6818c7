// Package watch regenerates output when the model or template changes on disk
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reports debounced changes to a set of watched files and directory trees
type Watcher struct {
	watcher  *fsnotify.Watcher
	targets  []string
	exclude  []string
	debounce time.Duration
	onChange func(ctx context.Context)
	logger   zerolog.Logger
}

// NewWatcher creates a watcher. onChange runs on the watch goroutine once the
// debounce delay has passed without further qualifying events.
func NewWatcher(debounce time.Duration, exclude []string, onChange func(ctx context.Context), logger zerolog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:  watcher,
		exclude:  exclude,
		debounce: debounce,
		onChange: onChange,
		logger:   logger.With().Str("component", "watcher").Logger(),
	}, nil
}

// Add watches path. A directory is watched recursively and any change below it
// qualifies; for a file only changes to that file qualify.
func (w *Watcher) Add(path string) error {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	if info.IsDir() {
		if err := w.addDirectory(path); err != nil {
			return err
		}
	} else if err := w.watcher.Add(filepath.Dir(path)); err != nil {
		// Editors often replace files on save, so the parent directory is watched
		return fmt.Errorf("failed to watch directory %s: %w", filepath.Dir(path), err)
	}

	w.targets = append(w.targets, path)
	return nil
}

// addDirectory recursively adds a directory to the watcher
func (w *Watcher) addDirectory(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if w.excluded(path) {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch directory %s: %w", path, err)
			}
		}

		return nil
	})
}

// Start watches for changes until ctx is cancelled
func (w *Watcher) Start(ctx context.Context) error {
	// Armed by the first qualifying event
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}

			// New directories inside a watched tree need their own watch
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && w.shouldWatch(event.Name) {
					if err := w.addDirectory(event.Name); err != nil {
						w.logger.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
					}
				}
			}

			if !w.shouldWatch(event.Name) {
				continue
			}

			w.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("change detected")
			timer.Reset(w.debounce)

		case <-timer.C:
			w.onChange(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			if err != nil {
				w.logger.Warn().Err(err).Msg("watcher error")
			}
		}
	}
}

// shouldWatch checks if a change to path should trigger a regeneration
func (w *Watcher) shouldWatch(path string) bool {
	path = filepath.Clean(path)
	if w.excluded(path) {
		return false
	}

	for _, target := range w.targets {
		if path == target || strings.HasPrefix(path, target+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

// excluded reports whether path matches an exclude pattern. Patterns ending in
// a slash match a directory anywhere in the path, others match the base name.
func (w *Watcher) excluded(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.exclude {
		if dir, ok := strings.CutSuffix(pattern, "/"); ok {
			for _, part := range strings.Split(filepath.ToSlash(path), "/") {
				if part == dir {
					return true
				}
			}
			continue
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
