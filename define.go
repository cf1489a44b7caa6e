package tamd

import (
	"errors"
	"strings"

	"github.com/danpasecinic/tamd/internal/reflect"
	"github.com/danpasecinic/tamd/internal/registry"
)

// Define registers value under name and fires every request whose last
// unresolved name this was. Problems are reported to the sink, never returned:
// a relative name or a second definition is rejected, and a value that is
// neither an object nor a function is stored as an Invalid record that still
// satisfies dependents.
func (r *Runtime) Define(name string, value any) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Debug("define on closed runtime ignored", "module", name)
		return
	}
	e := r.defineLocked(name, value, false)
	r.mu.Unlock()

	r.flush(e)
}

// DefineWith defines name once every dependency is defined. A function
// factory is called with the dependency values in order and its result is
// defined; any other value is defined as is. A factory returning a non-nil
// trailing error defines nil, which is reported as an invalid value.
func (r *Runtime) DefineWith(name string, deps []string, factory any) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Debug("define on closed runtime ignored", "module", name)
		return
	}

	var rep *Report
	switch {
	case registry.IsRelative(name):
		rep = &Report{Kind: InvalidIdentifier, Name: name, Message: msgInvalidIdentifier}
	case r.registry.Has(name) || r.deferred[name]:
		rep = &Report{Kind: DuplicateDefinition, Name: name, Message: msgDuplicateDefinition}
	}
	if rep != nil {
		r.mu.Unlock()
		r.emit(*rep)
		return
	}

	r.deferred[name] = true
	r.graph.AddNode(name, deps, false)
	var cycle []string
	if r.graph.HasCycle() {
		cycle = r.graph.FindCyclePath(name)
	}

	// The dependency request is registered in the epoch that declared name.
	epoch := r.epoch
	_, after := r.requireLocked(deps, func(values []any) {
		value := factory
		if reflect.IsFunc(factory) {
			value = r.callFactory(name, factory, values)
		}
		r.defineDeferred(name, value, epoch)
	})
	r.mu.Unlock()

	r.logger.Debug("deferred definition", "module", name, "dependencies", deps)
	if cycle != nil {
		// The request stays pending and is eventually reported as missing.
		r.logger.Warn("deferred definition depends on a cycle", "module", name, "cycle", strings.Join(cycle, " -> "))
	}
	after()
}

// callFactory returns nil when the factory fails or panics, so name is still
// defined and reported as an invalid value.
func (r *Runtime) callFactory(name string, factory any, values []any) (result any) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("module factory panicked", "module", name, "panic", p)
			result = nil
		}
	}()

	var err error
	result, err = reflect.CallFactory(factory, values)
	if err != nil {
		r.logger.Error("module factory failed", "module", name, "error", err)
		return nil
	}
	return result
}

func (r *Runtime) defineDeferred(name string, value any, epoch uint64) {
	r.mu.Lock()
	if r.closed || r.epoch != epoch || !r.deferred[name] {
		r.mu.Unlock()
		return
	}
	e := r.defineLocked(name, value, true)
	r.mu.Unlock()

	r.flush(e)
}

func (r *Runtime) defineLocked(name string, value any, deferred bool) effects {
	if !deferred && r.deferred[name] {
		return effects{report: &Report{Kind: DuplicateDefinition, Name: name, Message: msgDuplicateDefinition}}
	}

	rec, err := r.registry.Register(name, value)
	switch {
	case errors.Is(err, registry.ErrRelativeIdentifier):
		return effects{report: &Report{Kind: InvalidIdentifier, Name: name, Message: msgInvalidIdentifier}}
	case errors.Is(err, registry.ErrAlreadyDefined):
		return effects{report: &Report{Kind: DuplicateDefinition, Name: name, Message: msgDuplicateDefinition}}
	}

	e := effects{defined: rec}
	if errors.Is(err, registry.ErrInvalidValue) {
		e.report = &Report{Kind: InvalidValue, Name: name, Message: msgInvalidValue}
	}

	delete(r.deferred, name)
	r.graph.MarkDefined(name)

	for _, p := range r.resolver.Notify(name, rec.Value) {
		q, ok := r.requests[p.ID]
		if !ok {
			continue
		}
		e.fire = append(e.fire, r.completeLocked(q, p))
	}

	return e
}
