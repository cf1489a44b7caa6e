package resolver

import (
	"slices"
	"time"
)

type Continuation func(values []any)

// Source supplies values for names that are already defined.
type Source interface {
	Value(name string) (any, bool)
}

type Pending struct {
	ID        string
	Names     []string
	CreatedAt time.Time

	fn         Continuation
	values     []any
	unresolved map[string][]int
}

func (p *Pending) Complete() bool {
	return len(p.unresolved) == 0
}

func (p *Pending) Continuation() Continuation {
	return p.fn
}

// Values returns a copy of the resolved values in request order. Slots for
// names that are still unresolved hold nil.
func (p *Pending) Values() []any {
	values := make([]any, len(p.values))
	copy(values, p.values)
	return values
}

// Unresolved returns the distinct names still missing, in request order.
func (p *Pending) Unresolved() []string {
	if len(p.unresolved) == 0 {
		return nil
	}

	names := make([]string, 0, len(p.unresolved))
	seen := make(map[string]bool, len(p.unresolved))
	for _, name := range p.Names {
		if _, waiting := p.unresolved[name]; waiting && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func (p *Pending) resolve(name string, value any) bool {
	slots, waiting := p.unresolved[name]
	if !waiting {
		return false
	}
	for _, i := range slots {
		p.values[i] = value
	}
	delete(p.unresolved, name)
	return true
}

// Resolver tracks pending requests and their per-name subscriptions. It is
// not safe for concurrent use; the owning runtime serializes access.
type Resolver struct {
	pending     map[string]*Pending
	subscribers map[string][]*Pending
	now         func() time.Time
}

func New(now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		pending:     make(map[string]*Pending),
		subscribers: make(map[string][]*Pending),
		now:         now,
	}
}

// Request resolves whatever src already holds and subscribes the rest. A
// request that is complete on return is not tracked.
func (r *Resolver) Request(id string, names []string, src Source, fn Continuation) *Pending {
	p := &Pending{
		ID:         id,
		Names:      append([]string(nil), names...),
		CreatedAt:  r.now(),
		fn:         fn,
		values:     make([]any, len(names)),
		unresolved: make(map[string][]int),
	}

	for i, name := range names {
		if value, ok := src.Value(name); ok {
			p.values[i] = value
			continue
		}
		p.unresolved[name] = append(p.unresolved[name], i)
	}

	if p.Complete() {
		return p
	}

	r.pending[id] = p
	for name := range p.unresolved {
		r.subscribers[name] = append(r.subscribers[name], p)
	}
	return p
}

// Notify delivers value to every request subscribed to name and returns the
// requests it completed, in subscription order.
func (r *Resolver) Notify(name string, value any) []*Pending {
	subs := r.subscribers[name]
	if len(subs) == 0 {
		return nil
	}
	delete(r.subscribers, name)

	var done []*Pending
	for _, p := range subs {
		if !p.resolve(name, value) {
			continue
		}
		if p.Complete() {
			delete(r.pending, p.ID)
			done = append(done, p)
		}
	}
	return done
}

func (r *Resolver) Unresolved(id string) []string {
	p, ok := r.pending[id]
	if !ok {
		return nil
	}
	return p.Unresolved()
}

func (r *Resolver) Pending() []*Pending {
	out := make([]*Pending, 0, len(r.pending))
	for _, p := range r.pending {
		out = append(out, p)
	}
	return out
}

func (r *Resolver) Len() int {
	return len(r.pending)
}

// Waiting reports the names that at least one pending request subscribes
// to, sorted.
func (r *Resolver) Waiting() []string {
	names := make([]string, 0, len(r.subscribers))
	for name := range r.subscribers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Clear drops every pending request and subscription and returns the dropped
// requests.
func (r *Resolver) Clear() []*Pending {
	dropped := r.Pending()
	r.pending = make(map[string]*Pending)
	r.subscribers = make(map[string][]*Pending)
	return dropped
}
