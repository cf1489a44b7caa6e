package tamd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/danpasecinic/tamd/internal/graph"
	"github.com/danpasecinic/tamd/internal/host"
	"github.com/danpasecinic/tamd/internal/registry"
	"github.com/danpasecinic/tamd/internal/resolver"
	"github.com/danpasecinic/tamd/internal/timeout"
)

// DefaultTimeout is how long a required name may stay undefined before it is
// reported as missing.
const DefaultTimeout = 2000 * time.Millisecond

// Host is the scheduling facility continuations and timers run on.
type Host = host.Host

type ModuleState = registry.State

const (
	StateRegistered = registry.StateRegistered
	StateInvalid    = registry.StateInvalid
)

type Module struct {
	Name      string
	State     ModuleState
	Value     any
	DefinedAt time.Time
}

type Runtime struct {
	mu       sync.Mutex
	registry *registry.Registry
	resolver *resolver.Resolver
	watcher  *timeout.Watcher
	graph    *graph.Graph
	requests map[string]*Request
	deferred map[string]bool
	epoch    uint64
	closed   bool

	host   Host
	owned  *host.Loop
	sink   Sink
	logger *slog.Logger
	config *runtimeConfig
}

// New creates a runtime. Unless WithHost is given, the runtime owns a
// go-eventloop loop that Close shuts down.
func New(opts ...Option) (*Runtime, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	r := &Runtime{
		host:   cfg.host,
		sink:   cfg.sink,
		logger: cfg.logger,
		config: cfg,
	}

	if r.sink == nil {
		r.sink = LogSink(cfg.logger)
	}

	if r.host == nil {
		loop, err := host.NewLoop()
		if err != nil {
			return nil, errHostFailed("start", err)
		}
		r.host = loop
		r.owned = loop
	}

	r.registry = registry.New(r.host.Now)
	r.resolver = resolver.New(r.host.Now)
	r.watcher = timeout.New(r.host, cfg.timeout)
	r.graph = graph.New()
	r.requests = make(map[string]*Request)
	r.deferred = make(map[string]bool)

	return r, nil
}

// MustNew is New that panics on error.
func MustNew(opts ...Option) *Runtime {
	r, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Close discards pending requests (their handles fail with ErrClosed) and
// stops the owned event loop, if any. Later calls are no-ops.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.epoch++
	r.watcher.Reset()
	r.resolver.Clear()
	handles := r.takeRequestsLocked()
	r.mu.Unlock()

	for _, q := range handles {
		q.settle(nil, ErrClosed)
	}

	if r.owned != nil {
		if err := r.owned.Close(ctx); err != nil {
			return errHostFailed("close", err)
		}
	}
	return nil
}

func (r *Runtime) Timeout() time.Duration {
	return r.watcher.Window()
}

func (r *Runtime) Lookup(name string) (Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.registry.Lookup(name)
	if !ok {
		return Module{}, false
	}
	return Module{
		Name:      rec.Name,
		State:     rec.State,
		Value:     rec.Value,
		DefinedAt: rec.DefinedAt,
	}, true
}

func (r *Runtime) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.registry.Has(name)
}

// Names returns defined module names in definition order.
func (r *Runtime) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.registry.Names()
}

func (r *Runtime) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.registry.Size()
}

// Pending returns the number of requests still waiting on a name.
func (r *Runtime) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.resolver.Len()
}

// Validate reports dependencies declared through DefineWith that nothing
// defines or declares, and dependency cycles among deferred definitions.
func (r *Runtime) Validate() error {
	r.mu.Lock()
	missing := r.graph.Missing()
	cycles := r.graph.GetAllCyclePaths()
	r.mu.Unlock()

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("undeclared dependencies: %s", strings.Join(missing, ", ")))
	}
	for _, path := range cycles {
		errs = append(errs, errCircularDependency(path))
	}

	if len(errs) == 0 {
		return nil
	}
	return errValidationFailed(errors.Join(errs...))
}

// effects collects what a locked operation must do once the lock is released.
type effects struct {
	report  *Report
	defined *registry.Record
	fire    []func()
}

func (r *Runtime) flush(e effects) {
	if e.report != nil {
		r.emit(*e.report)
	}
	if e.defined != nil {
		r.logger.Debug("module defined", "module", e.defined.Name, "state", e.defined.State.String())
		for _, hook := range r.config.onDefine {
			hook(e.defined.Name, e.defined.State)
		}
	}
	for _, fire := range e.fire {
		fire()
	}
}

func (r *Runtime) emit(rep Report) {
	for _, hook := range r.config.onReport {
		hook(rep)
	}
	r.sink.Report(rep)
}

// completeLocked detaches a completed request and returns the function that
// schedules its continuation on the host.
func (r *Runtime) completeLocked(q *Request, p *resolver.Pending) func() {
	delete(r.requests, p.ID)
	r.watcher.Retire(p.ID)

	values := p.Values()
	fn := p.Continuation()
	wait := r.host.Now().Sub(p.CreatedAt)
	epoch := r.epoch

	return func() {
		for _, hook := range r.config.onResolve {
			hook(p.ID, p.Names, wait)
		}

		err := r.host.Post(func() {
			if err := r.discarded(epoch); err != nil {
				q.settle(nil, err)
				return
			}
			q.fulfill(values, fn)
		})
		if err != nil {
			r.logger.Error("failed to schedule continuation", "request", p.ID, "error", err)
			q.settle(nil, errHostFailed("continuation", err))
		}
	}
}

func (r *Runtime) expire(id string, epoch uint64) {
	r.mu.Lock()
	if epoch != r.epoch || !r.watcher.Expired(id) {
		r.mu.Unlock()
		return
	}
	missing := r.resolver.Unresolved(id)
	r.mu.Unlock()

	message := fmt.Sprintf(msgMissingModule, r.watcher.Window())
	for _, name := range missing {
		r.emit(Report{Kind: MissingModule, Name: name, Message: message})
	}
}

// discarded returns the error for work scheduled in an earlier epoch, or nil.
func (r *Runtime) discarded(epoch uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return ErrClosed
	case r.epoch != epoch:
		return ErrReinitialized
	default:
		return nil
	}
}

func (r *Runtime) takeRequestsLocked() []*Request {
	handles := make([]*Request, 0, len(r.requests))
	for id, q := range r.requests {
		handles = append(handles, q)
		delete(r.requests, id)
	}
	return handles
}
