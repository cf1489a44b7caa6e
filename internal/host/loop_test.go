package host

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()

	l, err := NewLoop()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Close(ctx)
	})
	return l
}

func TestLoop_PostRunsInOrder(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t)

	var (
		mu  sync.Mutex
		got []int
	)
	done := make(chan struct{})
	for i := range 5 {
		require.NoError(t, l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 4 {
				close(done)
			}
		}))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoop_AfterFuncFires(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t)
	fired := make(chan time.Time, 1)
	start := time.Now()

	_, err := l.AfterFunc(20*time.Millisecond, func() { fired <- time.Now() })
	require.NoError(t, err)

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 15*time.Millisecond)
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestLoop_AfterFuncCancel(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t)
	fired := make(chan struct{}, 1)

	cancel, err := l.AfterFunc(30*time.Millisecond, func() { fired <- struct{}{} })
	require.NoError(t, err)
	cancel()
	cancel()

	select {
	case <-fired:
		t.Fatal("canceled timer fired")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestLoop_Close(t *testing.T) {
	t.Parallel()

	l, err := NewLoop()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Close(ctx))
	assert.Error(t, l.Post(func() {}))
}

func TestLoop_CloseRightAfterNew(t *testing.T) {
	t.Parallel()

	for range 50 {
		l, err := NewLoop()
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(t, l.Close(ctx))
		cancel()
	}
}

func TestLoop_CancelManyTimers(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t)
	var fired atomic.Int32

	cancels := make([]func(), 0, 200)
	for range 200 {
		cancel, err := l.AfterFunc(20*time.Millisecond, func() { fired.Add(1) })
		require.NoError(t, err)
		cancels = append(cancels, cancel)
	}
	for _, cancel := range cancels {
		cancel()
	}

	done := make(chan struct{})
	_, err := l.AfterFunc(60*time.Millisecond, func() { close(done) })
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Zero(t, fired.Load())
}
