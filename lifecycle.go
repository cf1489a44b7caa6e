package tamd

import (
	"context"
	"sync"
)

// Reinitialize clears every module, pending request, and missing module timer.
// Handles of discarded requests fail with ErrReinitialized and their
// continuations never run; timers armed before the reset fire into nothing.
// The returned Completion settles on the host after the reset, so work chained
// with Then observes the empty runtime.
func (r *Runtime) Reinitialize() *Completion {
	c := &Completion{host: r.host, done: make(chan struct{})}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		c.settle(ErrClosed)
		return c
	}

	r.epoch++
	timers := r.watcher.Len()
	r.watcher.Reset()
	dropped := len(r.resolver.Clear())
	r.registry.Clear()
	r.graph.Clear()
	clear(r.deferred)
	handles := r.takeRequestsLocked()
	r.mu.Unlock()

	for _, q := range handles {
		q.settle(nil, ErrReinitialized)
	}

	r.logger.Debug("runtime reinitialized", "dropped_requests", dropped, "canceled_timers", timers)

	if err := r.host.Post(func() { c.settle(nil) }); err != nil {
		c.settle(errHostFailed("reinitialize", err))
	}
	return c
}

// Completion signals that an asynchronous runtime operation has finished.
type Completion struct {
	host Host

	mu      sync.Mutex
	settled bool
	done    chan struct{}
	err     error
	then    []func()
}

func (c *Completion) Done() <-chan struct{} {
	return c.done
}

func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Then schedules fn on the host once c settles, whether or not it failed.
// When the host no longer accepts tasks, fn runs on the calling goroutine.
func (c *Completion) Then(fn func()) *Completion {
	c.mu.Lock()
	if !c.settled {
		c.then = append(c.then, fn)
		c.mu.Unlock()
		return c
	}
	c.mu.Unlock()

	if err := c.host.Post(fn); err != nil {
		fn()
	}
	return c
}

func (c *Completion) settle(err error) {
	c.mu.Lock()
	if c.settled {
		c.mu.Unlock()
		return
	}
	c.settled = true
	c.err = err
	then := c.then
	c.then = nil
	close(c.done)
	c.mu.Unlock()

	for _, fn := range then {
		fn()
	}
}
