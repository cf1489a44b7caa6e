package tamd

import (
	"context"
	"slices"
	"sync"

	"github.com/danpasecinic/tamd/internal/resolver"
)

// Require asks for names and calls fn with their values, in request order,
// once all of them are defined. fn always runs as a task on the host, never
// inside Require or Define, even when every name is already defined. An empty
// names list completes immediately with no values. Names still undefined when
// the timeout elapses are reported as missing; the request stays pending and
// fires if they are defined later.
//
// fn may be nil when the caller only needs the returned handle.
func (r *Runtime) Require(names []string, fn func(values []any)) *Request {
	r.mu.Lock()
	q, after := r.requireLocked(names, fn)
	r.mu.Unlock()

	after()
	return q
}

// requireLocked registers a request in the current epoch and returns what
// must run once the lock is released.
func (r *Runtime) requireLocked(names []string, fn func(values []any)) (*Request, func()) {
	q := &Request{
		rt:    r,
		names: slices.Clone(names),
		done:  make(chan struct{}),
	}

	if r.closed {
		return q, func() { q.settle(nil, ErrClosed) }
	}

	q.id = r.config.newID()
	p := r.resolver.Request(q.id, q.names, r.registry, resolver.Continuation(fn))
	r.requests[q.id] = q

	if p.Complete() {
		return q, r.completeLocked(q, p)
	}

	id, epoch := q.id, r.epoch
	err := r.watcher.Arm(id, func() {
		r.expire(id, epoch)
	})
	unresolved := p.Unresolved()

	return q, func() {
		if err != nil {
			r.logger.Error("failed to arm missing module timer", "request", id, "error", err)
		}
		r.logger.Debug("request pending", "request", id, "unresolved", unresolved)
	}
}

// Await requires names and blocks until their values are available, ctx is
// done, or the request is discarded. It must not be called from a task
// running on the runtime's host, which would never get to run the
// continuation. Cancelling ctx does not withdraw the request.
func (r *Runtime) Await(ctx context.Context, names ...string) ([]any, error) {
	return r.Require(names, nil).Wait(ctx)
}

// Request is the handle for one Require call.
type Request struct {
	rt    *Runtime
	id    string
	names []string

	once   sync.Once
	done   chan struct{}
	values []any
	err    error
}

// ID is empty when the runtime was already closed.
func (q *Request) ID() string {
	return q.id
}

func (q *Request) Names() []string {
	return slices.Clone(q.names)
}

// Done is closed after the continuation has returned, or when the request is
// discarded by Reinitialize or Close.
func (q *Request) Done() <-chan struct{} {
	return q.done
}

// Values returns the resolved values, or nil while the request is pending or
// if it failed.
func (q *Request) Values() []any {
	select {
	case <-q.done:
		return slices.Clone(q.values)
	default:
		return nil
	}
}

func (q *Request) Err() error {
	select {
	case <-q.done:
		return q.err
	default:
		return nil
	}
}

// Unresolved lists the names the request is still waiting for.
func (q *Request) Unresolved() []string {
	select {
	case <-q.done:
		return nil
	default:
	}

	q.rt.mu.Lock()
	defer q.rt.mu.Unlock()
	return q.rt.resolver.Unresolved(q.id)
}

func (q *Request) Wait(ctx context.Context) ([]any, error) {
	select {
	case <-q.done:
		if q.err != nil {
			return nil, q.err
		}
		return slices.Clone(q.values), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Request) fulfill(values []any, fn resolver.Continuation) {
	defer q.settle(values, nil)

	if fn != nil {
		fn(values)
	}
}

func (q *Request) settle(values []any, err error) {
	q.once.Do(func() {
		q.values = slices.Clone(values)
		q.err = err
		close(q.done)
	})
}
