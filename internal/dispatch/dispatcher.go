package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/funclibd/internal/logging"
)

// Dispatcher runs continuations one at a time, in submission order, on a
// single goroutine. It stands in for a host UI thread: anything that touches
// host view state is enqueued here instead of running on a worker.
type Dispatcher struct {
	logger *logging.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	stopped bool
	done    chan struct{}
}

// NewDispatcher starts the dispatcher goroutine.
func NewDispatcher(logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Dispatcher{
		logger: logger.Named("dispatcher"),
		done:   make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

// InvokeLater enqueues fn and returns immediately.
func (d *Dispatcher) InvokeLater(fn func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	d.pending = append(d.pending, fn)
	d.cond.Signal()
	return nil
}

// Flush blocks until every continuation enqueued before the call has run.
func (d *Dispatcher) Flush(ctx context.Context) error {
	marker := make(chan struct{})
	if err := d.InvokeLater(func() { close(marker) }); err != nil {
		return err
	}
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop runs what is already queued, then stops the goroutine. Later
// InvokeLater calls fail with ErrDispatcherStopped.
//
// Stop waits for the dispatcher goroutine, so it must not be called from a
// continuation; that call would never return.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		d.cond.Signal()
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.pending) == 0 && !d.stopped {
			d.cond.Wait()
		}
		if len(d.pending) == 0 && d.stopped {
			d.mu.Unlock()
			return
		}
		batch := d.pending
		d.pending = nil
		d.mu.Unlock()

		for _, fn := range batch {
			d.run(fn)
		}
	}
}

func (d *Dispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(context.Background(), "continuation panicked", zap.Any("panic", r))
		}
	}()
	fn()
}
