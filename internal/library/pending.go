package library

import (
	"context"
	"sync"
)

// Pending tracks a write scheduled by WriteToLibrary. It completes once the
// write has run and the directory refresh has been handed to the UI thread.
type Pending struct {
	// OperationID correlates the write's log entries.
	OperationID string

	done chan struct{}
	once sync.Once
	err  error
}

func newPending(id string) *Pending {
	return &Pending{OperationID: id, done: make(chan struct{})}
}

func (p *Pending) complete(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed when the write completes.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the write error, or nil if it succeeded or has not completed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the write completes or ctx is done.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
