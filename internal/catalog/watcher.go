package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/prasenjit/go-mockenv/internal/metrics"
	"github.com/prasenjit/go-mockenv/internal/storage"
)

// DefaultDebounce is how long file events must settle before a reload
const DefaultDebounce = 250 * time.Millisecond

// LoadFile parses the catalog document at path and imports it into store
func LoadFile(store storage.Storage, path string) (*ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	result, err := Import(store, doc)
	if err != nil {
		return result, fmt.Errorf("%s: %w", path, err)
	}
	return result, nil
}

// Watcher keeps a set of catalog files imported into a store, re-importing
// a file when its content changes on disk
type Watcher struct {
	store    storage.Storage
	files    []string
	logger   *zap.Logger
	debounce time.Duration

	mu     sync.Mutex
	hashes map[string]uint64
}

// NewWatcher creates a watcher for files. Paths are made absolute.
func NewWatcher(store storage.Storage, files []string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	abs := make([]string, 0, len(files))
	for _, f := range files {
		if p, err := filepath.Abs(f); err == nil {
			f = p
		}
		abs = append(abs, filepath.Clean(f))
	}

	return &Watcher{
		store:    store,
		files:    abs,
		logger:   logger.Named("catalog"),
		debounce: DefaultDebounce,
		hashes:   make(map[string]uint64),
	}
}

// SetDebounce overrides the event settle delay
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// LoadAll imports every file once. Failures are collected and the remaining
// files are still imported.
func (w *Watcher) LoadAll() error {
	var errs error
	for _, f := range w.files {
		if _, err := w.Reload(f); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Reload imports path when its content differs from the last import.
// It reports whether an import happened.
func (w *Watcher) Reload(path string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		metrics.RecordCatalogReload(metrics.ReloadFailure)
		return false, fmt.Errorf("read catalog %s: %w", path, err)
	}

	sum := xxhash.Sum64(data)
	if prev, ok := w.hashes[path]; ok && prev == sum {
		metrics.RecordCatalogReload(metrics.ReloadSkipped)
		w.logger.Debug("Catalog unchanged", zap.String("file", path))
		return false, nil
	}

	doc, err := Parse(data)
	if err != nil {
		metrics.RecordCatalogReload(metrics.ReloadFailure)
		return false, fmt.Errorf("%s: %w", path, err)
	}

	result, err := Import(w.store, doc)
	if err != nil {
		metrics.RecordCatalogReload(metrics.ReloadFailure)
		return result != nil, fmt.Errorf("%s: %w", path, err)
	}

	w.hashes[path] = sum
	metrics.RecordCatalogReload(metrics.ReloadSuccess)
	w.logger.Info("Catalog imported",
		zap.String("file", path),
		zap.String("environment", doc.Environment.Name),
		zap.Int64("environment_id", result.EnvironmentID),
		zap.Int("routes", result.Imported.Routes),
		zap.Int("responses", result.Imported.Responses),
		zap.Int("rules", result.Imported.Rules))
	return true, nil
}

// Run watches the catalog files until ctx is done. Parent directories are
// watched so files replaced by rename are picked up too.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	defer fw.Close()

	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range w.files {
		watched[f] = true
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %q: %w", dir, err)
		}
		dirs[dir] = true
	}

	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	w.logger.Info("Watching catalog files", zap.Strings("files", w.files))

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			path := filepath.Clean(ev.Name)
			if !watched[path] || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			// Debounce: reset the timer if we get another event
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(w.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				if _, err := w.Reload(path); err != nil {
					w.logger.Error("Catalog reload failed", zap.String("file", path), zap.Error(err))
				}
			})

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Catalog watcher error", zap.Error(err))

		case <-ctx.Done():
			return nil
		}
	}
}
