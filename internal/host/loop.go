package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"
)

// Loop is a Host backed by a go-eventloop loop running on its own goroutine.
type Loop struct {
	loop *eventloop.Loop
	js   *eventloop.JS

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	runErr error
}

// NewLoop creates the loop and starts running it. Close must be called to
// release the loop goroutine.
func NewLoop() (*Loop, error) {
	loop, err := eventloop.New()
	if err != nil {
		return nil, err
	}

	js, err := eventloop.NewJS(loop)
	if err != nil {
		_ = loop.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		loop:   loop,
		js:     js,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(l.done)
		err := loop.Run(ctx)
		// Close before the goroutine reaches Run terminates the loop first.
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, eventloop.ErrLoopTerminated) {
			l.mu.Lock()
			l.runErr = err
			l.mu.Unlock()
		}
	}()

	return l, nil
}

func (l *Loop) Post(task func()) error {
	return l.loop.Submit(task)
}

func (l *Loop) AfterFunc(delay time.Duration, task func()) (func(), error) {
	ms := int(delay / time.Millisecond)
	if delay > 0 && ms == 0 {
		ms = 1
	}

	var canceled atomic.Bool
	id, err := l.js.SetTimeout(func() {
		if !canceled.Load() {
			task()
		}
	}, ms)
	if err != nil {
		return nil, err
	}

	// cancel may run while the caller holds a lock the timer task also takes,
	// so it only queues the clear. The flag makes the timer inert at once.
	return func() {
		if canceled.Swap(true) {
			return
		}
		// ErrTimerNotFound means the timer already fired; a terminated loop
		// has no timers left to clear.
		_ = l.loop.Submit(func() {
			_ = l.js.ClearTimeout(id)
		})
	}, nil
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

// Close drains queued tasks and stops the loop goroutine.
func (l *Loop) Close(ctx context.Context) error {
	err := l.loop.Shutdown(ctx)
	if errors.Is(err, eventloop.ErrLoopTerminated) {
		err = nil
	}
	l.cancel()

	select {
	case <-l.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Join(err, l.runErr)
}
