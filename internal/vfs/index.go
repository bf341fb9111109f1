package vfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/funclibd/internal/logging"
)

type fileState struct {
	size    int64
	modTime time.Time
	dir     bool
}

// Index is an in-memory view of directories on disk. Each Refresh rescans a
// directory, replaces its snapshot and reports what changed since the last
// one. It is safe for concurrent use.
type Index struct {
	logger *logging.Logger

	mu        sync.Mutex
	closed    bool
	snapshots map[string]map[string]fileState
	wg        sync.WaitGroup
}

// NewIndex creates an empty index.
func NewIndex(logger *logging.Logger) *Index {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Index{
		logger:    logger.Named("vfs"),
		snapshots: make(map[string]map[string]fileState),
	}
}

// Refresh rescans dir. Synchronous refreshes return the scan error as well as
// passing it to callback; asynchronous ones report only through callback.
func (x *Index) Refresh(ctx context.Context, dir string, opts RefreshOptions, callback RefreshCallback) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("vfs: resolve %s: %w", dir, err)
	}

	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return ErrClosed
	}
	x.wg.Add(1)
	x.mu.Unlock()

	if !opts.Async {
		defer x.wg.Done()
		return x.refresh(ctx, abs, opts.Recursive, callback)
	}

	go func() {
		defer x.wg.Done()
		_ = x.refresh(ctx, abs, opts.Recursive, callback)
	}()
	return nil
}

func (x *Index) refresh(ctx context.Context, dir string, recursive bool, callback RefreshCallback) error {
	current, err := scan(ctx, dir, recursive)
	if err != nil {
		x.logger.Warn(ctx, "refresh failed", zap.String("dir", dir), zap.Error(err))
		if callback != nil {
			callback(Change{Dir: dir}, err)
		}
		return err
	}

	x.mu.Lock()
	previous := x.snapshots[dir]
	x.snapshots[dir] = current
	x.mu.Unlock()

	change := diff(dir, previous, current)
	if !change.Empty() {
		x.logger.Debug(ctx, "directory refreshed",
			zap.String("dir", dir),
			zap.Int("added", len(change.Added)),
			zap.Int("removed", len(change.Removed)),
			zap.Int("modified", len(change.Modified)))
	}
	if callback != nil {
		callback(change, nil)
	}
	return nil
}

// Files returns the paths known for dir after the last refresh, sorted.
func (x *Index) Files(dir string) []string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	snap := x.snapshots[abs]
	out := make([]string, 0, len(snap))
	for p, st := range snap {
		if !st.dir {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Forget drops the snapshot of dir, as when its project closes.
func (x *Index) Forget(dir string) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return
	}
	x.mu.Lock()
	delete(x.snapshots, abs)
	x.mu.Unlock()
}

// Close rejects further refreshes and waits for asynchronous ones to finish.
func (x *Index) Close() error {
	x.mu.Lock()
	x.closed = true
	x.mu.Unlock()
	x.wg.Wait()
	return nil
}

// scan records every entry under dir. A directory that does not exist scans
// as empty.
func scan(ctx context.Context, dir string, recursive bool) (map[string]fileState, error) {
	out := make(map[string]fileState)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == dir {
			return nil
		}
		if d.IsDir() && skipDir(d.Name()) {
			return fs.SkipDir
		}

		info, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = fileState{size: info.Size(), modTime: info.ModTime(), dir: d.IsDir()}

		if d.IsDir() && !recursive {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vfs: scan %s: %w", dir, err)
	}
	return out, nil
}

func diff(dir string, previous, current map[string]fileState) Change {
	change := Change{Dir: dir}
	for p, cur := range current {
		prev, ok := previous[p]
		switch {
		case !ok:
			change.Added = append(change.Added, p)
		case !cur.dir && (prev.size != cur.size || !prev.modTime.Equal(cur.modTime) || prev.dir != cur.dir):
			change.Modified = append(change.Modified, p)
		}
	}
	for p := range previous {
		if _, ok := current[p]; !ok {
			change.Removed = append(change.Removed, p)
		}
	}
	sort.Strings(change.Added)
	sort.Strings(change.Removed)
	sort.Strings(change.Modified)
	return change
}

// skipDir reports directories the index and watcher never descend into.
func skipDir(name string) bool {
	switch name {
	case ".git", "__pycache__", ".venv", "node_modules":
		return true
	}
	return false
}

var _ Refresher = (*Index)(nil)

// statDir is os.Stat restricted to directories.
func statDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
