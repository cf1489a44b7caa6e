// Package tamdtest runs a tamd runtime on a manual host so tests control when
// continuations run and when missing module timers fire.
package tamdtest

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/danpasecinic/tamd"
	"github.com/danpasecinic/tamd/internal/host/hosttest"
)

type TB interface {
	Helper()
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Cleanup(f func())
}

// Host is a host with a virtual clock. Posted tasks run on Flush or Advance.
type Host = hosttest.Manual

func NewHost() *Host {
	return hosttest.NewManual()
}

// Recorder is a Sink that keeps every report it receives.
type Recorder struct {
	mu      sync.Mutex
	reports []tamd.Report
}

func (r *Recorder) Report(rep tamd.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
}

func (r *Recorder) Reports() []tamd.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.reports)
}

// Names returns the module names of reports of the given kind, in order.
func (r *Recorder) Names(kind tamd.Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for _, rep := range r.reports {
		if rep.Kind == kind {
			names = append(names, rep.Name)
		}
	}
	return names
}

func (r *Recorder) Count(kind tamd.Kind) int {
	return len(r.Names(kind))
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = nil
}

type TestRuntime struct {
	*tamd.Runtime
	Host     *Host
	Recorder *Recorder
	tb       TB
}

// New creates a runtime on a fresh manual host with reports captured by a
// Recorder and logging discarded. opts are applied last and may override
// any of these. The runtime is closed when the test ends.
func New(tb TB, opts ...tamd.Option) *TestRuntime {
	tb.Helper()

	h := NewHost()
	rec := &Recorder{}

	base := []tamd.Option{
		tamd.WithHost(h),
		tamd.WithSink(rec),
		tamd.WithLogger(slog.New(slog.DiscardHandler)),
	}

	rt, err := tamd.New(append(base, opts...)...)
	if err != nil {
		tb.Fatalf("failed to create runtime: %v", err)
	}

	tb.Cleanup(func() {
		if err := rt.Close(context.Background()); err != nil {
			tb.Fatalf("failed to close runtime: %v", err)
		}
		h.Close()
	})

	return &TestRuntime{
		Runtime:  rt,
		Host:     h,
		Recorder: rec,
		tb:       tb,
	}
}

// Flush runs every queued continuation.
func (tr *TestRuntime) Flush() int {
	return tr.Host.Flush()
}

// Advance moves the virtual clock, running continuations and firing due
// timers along the way.
func (tr *TestRuntime) Advance(d time.Duration) {
	tr.Host.Advance(d)
}

// Expire advances past the runtime's timeout window.
func (tr *TestRuntime) Expire() {
	tr.Host.Advance(tr.Timeout() + time.Millisecond)
}

func (tr *TestRuntime) RequireNoReports() {
	tr.tb.Helper()

	if reports := tr.Recorder.Reports(); len(reports) > 0 {
		tr.tb.Fatalf("expected no reports, got %v", reports)
	}
}

// RequireReports fails unless the reports of kind name exactly names, in
// order.
func (tr *TestRuntime) RequireReports(kind tamd.Kind, names ...string) {
	tr.tb.Helper()

	got := tr.Recorder.Names(kind)
	if !slices.Equal(got, names) {
		tr.tb.Fatalf("expected %s reports for %v, got %v", kind, names, got)
	}
}

func (tr *TestRuntime) RequireValidate() {
	tr.tb.Helper()

	if err := tr.Validate(); err != nil {
		tr.tb.Fatalf("runtime validation failed: %v", err)
	}
}

func (tr *TestRuntime) AssertHas(name string) {
	tr.tb.Helper()

	if !tr.Has(name) {
		tr.tb.Fatalf("expected runtime to have %s", name)
	}
}

func (tr *TestRuntime) AssertNotHas(name string) {
	tr.tb.Helper()

	if tr.Has(name) {
		tr.tb.Fatalf("expected runtime to not have %s", name)
	}
}

// MustRequire requires names and flushes the host, failing unless the
// continuation ran.
func (tr *TestRuntime) MustRequire(names ...string) []any {
	tr.tb.Helper()

	q := tr.Require(names, nil)
	tr.Flush()

	select {
	case <-q.Done():
	default:
		tr.tb.Fatalf("request for %v still waiting on %v", names, q.Unresolved())
	}
	if err := q.Err(); err != nil {
		tr.tb.Fatalf("request for %v failed: %v", names, err)
	}
	return q.Values()
}

func MustLookup[T any](tr *TestRuntime, name string) T {
	tr.tb.Helper()

	mod, ok := tr.Lookup(name)
	if !ok {
		tr.tb.Fatalf("module %s is not defined", name)
	}
	v, ok := mod.Value.(T)
	if !ok {
		tr.tb.Fatalf("module %s holds %T", name, mod.Value)
	}
	return v
}
