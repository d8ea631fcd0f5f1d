package templates

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher polls a template directory and reports changed files. Changes are
// debounced: a burst of writes produces one notification.
type Watcher struct {
	root     string
	interval time.Duration
	debounce time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	callbacks []func(files []string)
	modTimes  map[string]time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.interval = d }
}

// WithDebounce sets how long the watcher waits for a burst to settle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// NewWatcher watches template files under root.
func NewWatcher(root string, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:     root,
		interval: time.Second,
		debounce: 100 * time.Millisecond,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.modTimes = w.scan()
	return w
}

// OnChange registers a callback receiving the changed file names, relative
// to the root and slash-separated.
func (w *Watcher) OnChange(cb func(files []string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Run polls until ctx ends.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		pending  = make(map[string]struct{})
		debounce *time.Timer
		fire     <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return
		case <-ticker.C:
			changed := w.Check()
			if len(changed) == 0 {
				continue
			}
			for _, f := range changed {
				pending[f] = struct{}{}
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.debounce)
			fire = debounce.C
		case <-fire:
			fire = nil
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			sort.Strings(files)
			pending = make(map[string]struct{})
			w.dispatch(files)
		}
	}
}

// Check compares the directory against the last scan and returns the files
// created, modified or removed since.
func (w *Watcher) Check() []string {
	current := w.scan()

	w.mu.Lock()
	defer w.mu.Unlock()

	var changed []string
	for f, mod := range current {
		if prev, ok := w.modTimes[f]; !ok || !mod.Equal(prev) {
			changed = append(changed, f)
		}
	}
	for f := range w.modTimes {
		if _, ok := current[f]; !ok {
			changed = append(changed, f)
		}
	}
	w.modTimes = current
	sort.Strings(changed)
	return changed
}

func (w *Watcher) dispatch(files []string) {
	w.mu.Lock()
	callbacks := make([]func([]string), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Debug("template files changed", zap.Strings("files", files))
	for _, cb := range callbacks {
		cb(files)
	}
}

func (w *Watcher) scan() map[string]time.Time {
	out := make(map[string]time.Time)
	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, Extension) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return nil
		}
		out[filepath.ToSlash(rel)] = info.ModTime()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		w.logger.Warn("template scan failed", zap.String("root", w.root), zap.Error(err))
	}
	return out
}
