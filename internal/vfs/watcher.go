package vfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/funclibd/internal/logging"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Interval is the minimum spacing between refreshes. Zero means no
	// throttling.
	Interval time.Duration

	// Burst is how many refreshes may run back to back before Interval
	// applies. Defaults to 1.
	Burst int

	// OnChange is called with every non-empty change found by a refresh.
	OnChange func(Change)

	// Ignore reports whether a slash-separated path relative to the root is
	// ignored. Ignored directories are not watched and events for ignored
	// paths do not trigger refreshes.
	Ignore func(rel string, isDir bool) bool
}

// Watcher watches a project tree and refreshes it through a Refresher when
// files change on disk. Bursts of events coalesce into one refresh and
// refreshes are throttled by a token bucket.
type Watcher struct {
	root      string
	refresher Refresher
	opts      WatcherOptions
	logger    *logging.Logger

	watcher *fsnotify.Watcher
	limiter *rate.Limiter
	trigger chan struct{}
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher on root. Call Start to begin watching.
func NewWatcher(root string, refresher Refresher, opts WatcherOptions, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("vfs: resolve %s: %w", root, err)
	}
	if ok, err := statDir(abs); err != nil || !ok {
		return nil, fmt.Errorf("vfs: watch root %s is not a directory", abs)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}

	return &Watcher{
		root:      abs,
		refresher: refresher,
		opts:      opts,
		logger:    logger.Named("watcher"),
		watcher:   fw,
		limiter:   rate.NewLimiter(limit, opts.Burst),
		trigger:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}, nil
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Start registers every directory under the root and begins processing
// events in background goroutines. An initial refresh establishes the
// baseline snapshot.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.processRefreshes(ctx)

	w.requestRefresh()
	w.logger.Info(ctx, "watching project", zap.String("root", w.root))
	return nil
}

// Stop stops the watcher and waits for its goroutines. Safe to call more
// than once.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		_ = w.watcher.Close() // Best-effort cleanup, ignore error
	})
	w.wg.Wait()
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (skipDir(d.Name()) || w.ignored(path, true)) {
			return fs.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// processEvents turns filesystem events into refresh requests.
func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, "watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if skipDir(filepath.Base(event.Name)) {
		return
	}
	isDir, _ := statDir(event.Name)
	if w.ignored(event.Name, isDir) {
		return
	}
	if isDir && event.Has(fsnotify.Create) {
		if err := w.addTree(event.Name); err != nil {
			w.logger.Warn(ctx, "failed to watch new directory", zap.String("dir", event.Name), zap.Error(err))
		}
	}
	w.logger.Trace(ctx, "filesystem event", zap.String("path", event.Name), zap.String("op", event.Op.String()))
	w.requestRefresh()
}

func (w *Watcher) ignored(path string, isDir bool) bool {
	if w.opts.Ignore == nil {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	return w.opts.Ignore(filepath.ToSlash(rel), isDir)
}

// requestRefresh marks the tree dirty; pending requests coalesce.
func (w *Watcher) requestRefresh() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) processRefreshes(ctx context.Context) {
	defer w.wg.Done()

	// Stop cancels limiter waits.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.trigger:
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return
		}

		err := w.refresher.Refresh(ctx, w.root, RefreshOptions{Recursive: true}, func(change Change, err error) {
			if err == nil && !change.Empty() && w.opts.OnChange != nil {
				w.opts.OnChange(change)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn(ctx, "refresh failed", zap.String("root", w.root), zap.Error(err))
		}
	}
}
