// Package script drives a runtime from a YAML scenario. A scenario is a list
// of steps, each performing exactly one action:
//
//	timeout: 500ms
//	steps:
//	  - define: config
//	    value: {port: 8080}
//	  - define: server
//	    deps: [config]
//	  - alias: settings
//	    target: config
//	  - require: [server, settings]
//	  - wait: 1s
//	  - print: graph
//	  - validate: true
//	  - reinitialize: true
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danpasecinic/tamd"
)

var (
	ErrNoSteps     = errors.New("scenario has no steps")
	ErrStepActions = errors.New("step must have exactly one action")
)

type Scenario struct {
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Steps   []Step        `yaml:"steps"`
}

type Step struct {
	Define       string        `yaml:"define,omitempty"`
	Value        any           `yaml:"value,omitempty"`
	Deps         []string      `yaml:"deps,omitempty"`
	Alias        string        `yaml:"alias,omitempty"`
	Target       string        `yaml:"target,omitempty"`
	Require      []string      `yaml:"require,omitempty"`
	Wait         time.Duration `yaml:"wait,omitempty"`
	Print        string        `yaml:"print,omitempty"`
	Validate     bool          `yaml:"validate,omitempty"`
	Reinitialize bool          `yaml:"reinitialize,omitempty"`
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{
		s.Define != "",
		s.Alias != "",
		s.Require != nil,
		s.Wait > 0,
		s.Print != "",
		s.Validate,
		s.Reinitialize,
	} {
		if set {
			n++
		}
	}
	return n
}

func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return ErrNoSteps
	}

	var errs []error
	for i, step := range s.Steps {
		if step.actions() != 1 {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, ErrStepActions))
			continue
		}
		if step.Alias != "" && step.Target == "" {
			errs = append(errs, fmt.Errorf("step %d: alias %s has no target", i+1, step.Alias))
		}
		if step.Print != "" && !validPrint(step.Print) {
			errs = append(errs, fmt.Errorf("step %d: unknown print target %q", i+1, step.Print))
		}
	}
	return errors.Join(errs...)
}

func validPrint(target string) bool {
	switch target {
	case "graph", "dot", "modules":
		return true
	default:
		return false
	}
}

// Runner executes scenarios against a runtime. Sleep and Drain default to
// real time and to waiting for the runtime's host to run every queued task;
// tests on a manual host replace both.
type Runner struct {
	Runtime *tamd.Runtime
	Out     io.Writer
	Sleep   func(ctx context.Context, d time.Duration) error
	Drain   func(ctx context.Context) error

	mu sync.Mutex
}

func NewRunner(rt *tamd.Runtime, out io.Writer) *Runner {
	r := &Runner{Runtime: rt, Out: out}
	r.Sleep = sleep
	r.Drain = func(ctx context.Context) error {
		_, err := rt.Await(ctx)
		return err
	}
	return r
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes every step in order, then drains the host so continuations
// of satisfied requests have printed before it returns.
func (r *Runner) Run(ctx context.Context, s *Scenario) error {
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.step(ctx, step); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return r.Drain(ctx)
}

func (r *Runner) step(ctx context.Context, step Step) error {
	rt := r.Runtime

	switch {
	case step.Define != "" && step.Deps != nil:
		if step.Value != nil {
			rt.DefineWith(step.Define, step.Deps, step.Value)
		} else {
			rt.DefineWith(step.Define, step.Deps, collect(step.Deps))
		}

	case step.Define != "":
		rt.Define(step.Define, step.Value)

	case step.Alias != "":
		rt.Alias(step.Alias, step.Target)

	case step.Require != nil:
		names := step.Require
		rt.Require(names, func(values []any) {
			r.printf("resolved [%s] %v\n", strings.Join(names, ", "), values)
		})

	case step.Wait > 0:
		if err := r.Drain(ctx); err != nil {
			return err
		}
		return r.Sleep(ctx, step.Wait)

	case step.Print != "":
		if err := r.Drain(ctx); err != nil {
			return err
		}
		r.print(step.Print)

	case step.Validate:
		if err := rt.Validate(); err != nil {
			r.printf("validate: %v\n", err)
		} else {
			r.printf("validate: ok\n")
		}

	case step.Reinitialize:
		c := rt.Reinitialize()
		if err := r.Drain(ctx); err != nil {
			return err
		}
		return c.Wait(ctx)
	}

	return nil
}

// collect builds a factory that defines a mapping from each dependency name
// to its value.
func collect(deps []string) func(values ...any) map[string]any {
	return func(values ...any) map[string]any {
		out := make(map[string]any, len(deps))
		for i, dep := range deps {
			out[dep] = values[i]
		}
		return out
	}
}

func (r *Runner) print(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch target {
	case "graph":
		r.Runtime.FprintGraph(r.Out)
	case "dot":
		r.Runtime.FprintGraphDOT(r.Out)
	case "modules":
		for _, name := range r.Runtime.Names() {
			mod, _ := r.Runtime.Lookup(name)
			_, _ = fmt.Fprintf(r.Out, "%s\t%s\n", name, mod.State)
		}
	}
}

func (r *Runner) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.Out, format, args...)
}
