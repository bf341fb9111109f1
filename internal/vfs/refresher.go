package vfs

import (
	"context"
	"errors"
)

// ErrClosed is returned by refreshers and watchers after Close.
var ErrClosed = errors.New("vfs: closed")

// RefreshOptions controls a directory refresh.
type RefreshOptions struct {
	// Recursive descends into subdirectories.
	Recursive bool

	// Async returns immediately and reports through the callback from
	// another goroutine.
	Async bool
}

// Change is the difference between two snapshots of a directory. Paths are
// slash-separated, relative to the refreshed directory and sorted.
type Change struct {
	Dir      string
	Added    []string
	Removed  []string
	Modified []string
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// RefreshCallback receives the outcome of a refresh. It may be nil.
type RefreshCallback func(Change, error)

// Refresher brings the host's view of a directory up to date with disk.
type Refresher interface {
	Refresh(ctx context.Context, dir string, opts RefreshOptions, callback RefreshCallback) error
}
