// Package watch triggers a rescan callback when a scan root's directory
// tree changes, debouncing bursts of filesystem events into a single
// rescan the way a build tool coalesces a flurry of saves.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config configures a Watcher. Zero values are filled by defaults().
type Config struct {
	// Debounce coalesces a burst of events into one rescan trigger.
	// Default 200ms.
	Debounce time.Duration
	Logger   *slog.Logger
}

func (c *Config) defaults() {
	if c.Debounce <= 0 {
		c.Debounce = 200 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Watcher recursively watches root (fsnotify does not recurse on its own,
// so every subdirectory is added explicitly, mirroring the teacher's
// walkAndWatch idiom for watching a ref tree) and invokes onChange, once
// per debounce window, whenever a file under it is created, written,
// removed, or renamed.
type Watcher struct {
	cfg     Config
	root    string
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// New constructs a Watcher rooted at root but does not start it; call Run.
func New(root string, cfg Config) (*Watcher, error) {
	cfg.defaults()
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{cfg: cfg, root: root, watcher: fw}
	walkAndWatch(fw, root, cfg.Logger)
	return w, nil
}

// walkAndWatch adds a watch on dir and every subdirectory beneath it.
// Missing or unreadable directories are silently skipped, matching the
// teacher's tolerance for a ref tree that may not fully exist yet.
func walkAndWatch(fw *fsnotify.Watcher, dir string, logger *slog.Logger) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}
	err = filepath.Walk(dir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // skip unreadable entries, matching the teacher's watcher
		}
		if fi.IsDir() {
			if addErr := fw.Add(path); addErr != nil {
				logger.Warn("watch: failed to watch directory", "dir", path, "error", addErr)
			}
		}
		return nil
	})
	if err != nil {
		logger.Warn("watch: failed to walk directory tree", "dir", dir, "error", err)
	}
}

// Run blocks, invoking onChange after each debounced burst of filesystem
// events, until ctx is cancelled. It closes the underlying fsnotify
// watcher before returning.
func (w *Watcher) Run(ctx context.Context, onChange func()) {
	defer w.watcher.Close()

	var debounceTimer *time.Timer
	var mu sync.Mutex

	fire := func() {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		onChange()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if shouldIgnore(event) {
				continue
			}
			w.cfg.Logger.Debug("watch: change detected", "path", event.Name, "op", event.Op.String())

			// A newly created directory needs its own watch registered, or
			// files added under it afterward would go unnoticed (fsnotify
			// does not recurse).
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					walkAndWatch(w.watcher, event.Name, w.cfg.Logger)
				}
			}

			mu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.cfg.Debounce, fire)
			mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.cfg.Logger.Error("watch: watcher error", "error", err)
		}
	}
}

func shouldIgnore(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}
	return false
}
