// Package watch re-runs work when files under a repository change.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spetr/grounded-context-mcp/internal/config"
	"github.com/spetr/grounded-context-mcp/internal/corpus"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a directory tree and reports debounced batches of changes.
type Watcher struct {
	root     string
	ignore   []string
	onChange func(ctx context.Context, changed []string)
	logger   *slog.Logger

	watcher *fsnotify.Watcher

	// Debouncing
	pendingMu    sync.Mutex
	pendingFiles map[string]time.Time
	debounceTime time.Duration
}

// Config contains watcher configuration.
type Config struct {
	Root     string
	Scan     config.ScanConfig // ignore_dirs are never watched
	Debounce time.Duration     // Default: 500ms
	// OnChange receives root-relative, slash separated paths, sorted.
	OnChange func(ctx context.Context, changed []string)
	Logger   *slog.Logger
}

// New creates a watcher and registers all non-ignored directories under
// root. Events that occur after New returns are not lost.
func New(cfg Config) (*Watcher, error) {
	root, err := corpus.ResolveRoot(cfg.Root)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OnChange == nil {
		cfg.OnChange = func(context.Context, []string) {}
	}

	w := &Watcher{
		root:         root,
		ignore:       cfg.Scan.IgnoreDirs,
		onChange:     cfg.OnChange,
		logger:       cfg.Logger,
		watcher:      fw,
		pendingFiles: make(map[string]time.Time),
		debounceTime: cfg.Debounce,
	}

	if err := w.addWatchDirs(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Root returns the resolved root being watched.
func (w *Watcher) Root() string {
	return w.root
}

// Watch processes events until ctx is cancelled. It closes the underlying
// watcher before returning.
func (w *Watcher) Watch(ctx context.Context) error {
	w.logger.Info("watching for file changes", "dir", w.root, "debounce", w.debounceTime)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.processDebounced(ctx)
	}()
	defer wg.Wait()

	// Event loop
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping watcher")
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// addWatchDirs recursively adds directories to watch.
func (w *Watcher) addWatchDirs(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && corpus.Ignored(w.ignore, d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// handleEvent records a relevant change as pending.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	relPath = filepath.ToSlash(relPath)
	if w.isIgnored(relPath) {
		return
	}

	// New directories are watched as they appear.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addWatchDirs(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", relPath, "error", err)
			}
		}
	}

	w.pendingMu.Lock()
	w.pendingFiles[relPath] = time.Now()
	w.pendingMu.Unlock()

	w.logger.Debug("file changed", "path", relPath, "op", event.Op.String())
}

func (w *Watcher) isIgnored(relPath string) bool {
	dir := relPath
	for dir != "." && dir != "/" && dir != "" {
		if corpus.Ignored(w.ignore, filepath.Base(dir)) {
			return true
		}
		dir = filepath.Dir(dir)
	}
	return false
}

// processDebounced flushes pending changes once they have been quiet for
// the debounce period.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if changed := w.takeSettled(time.Now()); len(changed) > 0 {
				w.logger.Info("changes settled", "count", len(changed))
				w.onChange(ctx, changed)
			}
		}
	}
}

// takeSettled returns and clears all pending paths when the most recent
// change is at least one debounce period old.
func (w *Watcher) takeSettled(now time.Time) []string {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if len(w.pendingFiles) == 0 {
		return nil
	}
	var latest time.Time
	for _, changedAt := range w.pendingFiles {
		if changedAt.After(latest) {
			latest = changedAt
		}
	}
	if now.Sub(latest) < w.debounceTime {
		return nil
	}

	changed := make([]string, 0, len(w.pendingFiles))
	for path := range w.pendingFiles {
		changed = append(changed, path)
	}
	clear(w.pendingFiles)
	sort.Strings(changed)
	return changed
}
