package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/funclibd/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewPool_InvalidArgs(t *testing.T) {
	_, err := NewPool(0, 1, nil)
	assert.Error(t, err)

	_, err = NewPool(1, -1, nil)
	assert.Error(t, err)
}

func TestPool_RunsAllTasksBeforeClose(t *testing.T) {
	pool, err := NewPool(3, 10, nil)
	require.NoError(t, err)

	var ran atomic.Int32
	for i := 0; i < 25; i++ {
		require.NoError(t, pool.Submit(context.Background(), func(context.Context) {
			ran.Add(1)
		}))
	}

	require.NoError(t, pool.Close())
	assert.Equal(t, int32(25), ran.Load())
}

func TestPool_SubmitAfterClose(t *testing.T) {
	pool, err := NewPool(1, 0, nil)
	require.NoError(t, err)
	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close(), "close is idempotent")

	err = pool.Submit(context.Background(), func(context.Context) {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_SubmitNil(t *testing.T) {
	pool, err := NewPool(1, 0, nil)
	require.NoError(t, err)
	defer pool.Close()

	assert.Error(t, pool.Submit(context.Background(), nil))
}

func TestPool_SubmitHonorsContextWhenFull(t *testing.T) {
	pool, err := NewPool(1, 0, nil)
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) {
		close(started)
		<-release
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = pool.Submit(ctx, func(context.Context) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, pool.Close())
}

func TestPool_RecoversPanics(t *testing.T) {
	tl := logging.NewTestLogger()
	pool, err := NewPool(1, 2, tl.Logger)
	require.NoError(t, err)

	var after atomic.Bool
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) { panic("boom") }))
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) { after.Store(true) }))
	require.NoError(t, pool.Close())

	assert.True(t, after.Load(), "worker survives a panicking task")
	tl.AssertLogged(t, zapcore.ErrorLevel, "task panicked")
}

func TestDispatcher_RunsInOrderOnOneGoroutine(t *testing.T) {
	d := NewDispatcher(nil)
	defer d.Stop()

	var mu sync.Mutex
	var order []int
	var inFlight, maxInFlight atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		require.NoError(t, d.InvokeLater(func() {
			defer wg.Done()
			n := inFlight.Add(1)
			if n > maxInFlight.Load() {
				maxInFlight.Store(n)
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			inFlight.Add(-1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	for i := range order {
		assert.Equal(t, i, order[i])
	}
}

func TestDispatcher_Flush(t *testing.T) {
	d := NewDispatcher(nil)
	defer d.Stop()

	var ran atomic.Bool
	require.NoError(t, d.InvokeLater(func() {
		time.Sleep(5 * time.Millisecond)
		ran.Store(true)
	}))

	require.NoError(t, d.Flush(context.Background()))
	assert.True(t, ran.Load())
}

func TestDispatcher_StopDrainsAndRejects(t *testing.T) {
	d := NewDispatcher(nil)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, d.InvokeLater(func() { ran.Add(1) }))
	}
	d.Stop()
	d.Stop()

	assert.Equal(t, int32(5), ran.Load())
	assert.ErrorIs(t, d.InvokeLater(func() {}), ErrDispatcherStopped)
	assert.ErrorIs(t, d.Flush(context.Background()), ErrDispatcherStopped)
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	tl := logging.NewTestLogger()
	d := NewDispatcher(tl.Logger)
	defer d.Stop()

	require.NoError(t, d.InvokeLater(func() { panic("ui boom") }))
	require.NoError(t, d.Flush(context.Background()))

	tl.AssertLogged(t, zapcore.ErrorLevel, "continuation panicked")
}
