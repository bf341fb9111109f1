package vfs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeLog struct {
	mu      sync.Mutex
	changes []Change
}

func (l *changeLog) add(c Change) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *changeLog) touched(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.changes {
		for _, list := range [][]string{c.Added, c.Modified, c.Removed} {
			for _, p := range list {
				if p == path {
					return true
				}
			}
		}
	}
	return false
}

func TestWatcher_RefreshesOnChange(t *testing.T) {
	dir := t.TempDir()
	x := NewIndex(nil)
	defer x.Close()

	var log changeLog
	w, err := NewWatcher(dir, x, WatcherOptions{Interval: 10 * time.Millisecond, OnChange: log.add}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	write(t, filepath.Join(dir, "f.py"), "def f(): pass\n")
	assert.Eventually(t, func() bool { return log.touched("f.py") }, 5*time.Second, 20*time.Millisecond)

	write(t, filepath.Join(dir, "pkg", "g.py"), "def g(): pass\n")
	assert.Eventually(t, func() bool { return log.touched("pkg/g.py") }, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	x := NewIndex(nil)
	defer x.Close()

	w, err := NewWatcher(t.TempDir(), x, WatcherOptions{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

func TestNewWatcher_InvalidRoot(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), NewIndex(nil), WatcherOptions{}, nil)
	assert.Error(t, err)
}

func TestWatcher_IgnoredPathsDoNotRefresh(t *testing.T) {
	dir := t.TempDir()
	x := NewIndex(nil)
	defer x.Close()

	var log changeLog
	w, err := NewWatcher(dir, x, WatcherOptions{
		OnChange: log.add,
		Ignore: func(rel string, isDir bool) bool {
			return rel == "scratch" || filepath.Ext(rel) == ".tmp"
		},
	}, nil)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scratch"), 0o755))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.NotContains(t, w.watcher.WatchList(), filepath.Join(dir, "scratch"))
	assert.True(t, w.ignored(filepath.Join(dir, "f.tmp"), false))
	assert.False(t, w.ignored(filepath.Join(dir, "f.py"), false))

	write(t, filepath.Join(dir, "scratch", "note.py"), "x")
	write(t, filepath.Join(dir, "f.tmp"), "x")
	write(t, filepath.Join(dir, "marker.py"), "x")

	// marker.py's refresh also scans the ignored files; the index is not
	// filtered, only the watcher's triggers are.
	assert.Eventually(t, func() bool { return log.touched("marker.py") }, 5*time.Second, 20*time.Millisecond)
}
