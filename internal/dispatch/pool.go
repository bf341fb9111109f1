package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/funclibd/internal/logging"
)

var (
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrDispatcherStopped is returned by InvokeLater after Stop.
	ErrDispatcherStopped = errors.New("dispatcher stopped")
)

// Task is a unit of background work.
type Task func(ctx context.Context)

// Pool runs submitted tasks on a fixed set of worker goroutines.
//
// Submit never waits for a task to run; it only waits for queue space when
// the queue is full. Tasks are not cancellable once queued.
type Pool struct {
	logger *logging.Logger
	queue  chan Task
	group  *errgroup.Group
	ctx    context.Context

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines reading from a queue of queueSize.
func NewPool(workers, queueSize int, logger *logging.Logger) (*Pool, error) {
	if workers < 1 {
		return nil, fmt.Errorf("workers must be >= 1, got %d", workers)
	}
	if queueSize < 0 {
		return nil, fmt.Errorf("queue size must be >= 0, got %d", queueSize)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	group, ctx := errgroup.WithContext(context.Background())
	p := &Pool{
		logger: logger.Named("pool"),
		queue:  make(chan Task, queueSize),
		group:  group,
		ctx:    ctx,
	}

	for i := 0; i < workers; i++ {
		group.Go(p.work)
	}

	return p, nil
}

// Submit enqueues task. It blocks only while the queue is full and returns
// ctx.Err() if ctx is done first.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, runs everything already queued, and waits for
// the workers to exit.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	return p.group.Wait()
}

func (p *Pool) work() error {
	for task := range p.queue {
		p.run(task)
	}
	return nil
}

// run executes one task; a panicking task is logged and does not take the
// worker down.
func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(p.ctx, "task panicked", zap.Any("panic", r))
		}
	}()
	task(p.ctx)
}
