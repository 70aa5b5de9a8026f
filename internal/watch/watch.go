// Package watch re-runs a callback when any of a fixed set of files changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/marcopolo/internal/logging"
)

var (
	// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
	ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

	// ErrNoFiles indicates a watcher created without files.
	ErrNoFiles = errors.New("no files to watch")
)

// ChangeFunc is called once per debounced burst of changes with the sorted
// absolute paths that changed.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher watches the parent directories of a set of files so that editors
// saving through rename-and-replace are still seen.
type Watcher struct {
	files    map[string]bool
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *logging.Logger
}

// New creates a watcher for paths. A nil logger discards log output.
func New(paths []string, debounce time.Duration, logger *logging.Logger) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	files := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	return &Watcher{
		files:    files,
		watcher:  fw,
		debounce: debounce,
		logger:   logger,
	}, nil
}

// Run delivers change notifications to fn until ctx is done or the watcher
// is closed. Each relevant event restarts the debounce timer; fn runs once
// the files have been quiet for the debounce period. Run returns nil on
// cancellation.
func (w *Watcher) Run(ctx context.Context, fn ChangeFunc) error {
	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Trace(ctx, "file event", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(w.debounce)
			pending[filepath.Clean(event.Name)] = true

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			w.logger.Debug(ctx, "watched files changed", zap.Strings("paths", changed))
			fn(ctx, changed)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "filesystem watcher error", zap.Error(err))
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	return w.files[filepath.Clean(event.Name)]
}
