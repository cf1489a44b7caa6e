package tamd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/danpasecinic/tamd/internal/reflect"
)

type GraphInfo struct {
	Modules  []ModuleInfo
	Requests []RequestInfo
}

type ModuleInfo struct {
	Name         string
	Dependencies []string
	Dependents   []string
	Declared     bool
	Defined      bool
	State        ModuleState
	Type         string
	Waiters      int
}

type RequestInfo struct {
	ID         string
	Names      []string
	Unresolved []string
	Age        time.Duration
	Overdue    bool
}

// Graph returns modules in dependency order followed by names that are
// required but neither defined nor declared, and pending requests oldest
// first.
func (r *Runtime) Graph() GraphInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.graph.TopologicalSort()
	if err != nil {
		order = r.graph.Nodes()
	}

	waiters := make(map[string]int)
	pending := r.resolver.Pending()
	for _, p := range pending {
		for _, name := range p.Unresolved() {
			waiters[name]++
		}
	}

	modules := make([]ModuleInfo, 0, len(order)+len(waiters))
	for _, name := range order {
		node, _ := r.graph.GetNode(name)
		info := ModuleInfo{
			Name:         name,
			Dependencies: node.Dependencies,
			Dependents:   r.graph.GetDependents(name),
			Declared:     true,
			Defined:      node.Defined,
			Waiters:      waiters[name],
		}
		if rec, ok := r.registry.Lookup(name); ok {
			info.State = rec.State
			info.Type = reflect.TypeKeyFromValue(rec.Value)
		}
		modules = append(modules, info)
	}

	for _, name := range r.resolver.Waiting() {
		if !r.graph.HasNode(name) {
			modules = append(modules, ModuleInfo{Name: name, Waiters: waiters[name]})
		}
	}

	now := r.host.Now()
	requests := make([]RequestInfo, 0, len(pending))
	for _, p := range pending {
		requests = append(requests, RequestInfo{
			ID:         p.ID,
			Names:      slices.Clone(p.Names),
			Unresolved: p.Unresolved(),
			Age:        now.Sub(p.CreatedAt),
			Overdue:    !r.watcher.Armed(p.ID),
		})
	}
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].Age != requests[j].Age {
			return requests[i].Age > requests[j].Age
		}
		return requests[i].ID < requests[j].ID
	})

	return GraphInfo{Modules: modules, Requests: requests}
}

func (r *Runtime) PrintGraph() {
	r.FprintGraph(os.Stdout)
}

// FprintGraph writes one line per module: ● registered, ✗ invalid,
// ○ declared but not yet defined, ? required only.
func (r *Runtime) FprintGraph(w io.Writer) {
	info := r.Graph()

	if len(info.Modules) == 0 {
		_, _ = fmt.Fprintln(w, "(empty runtime)")
	}

	for _, mod := range info.Modules {
		line := moduleStatus(mod) + " " + mod.Name
		if len(mod.Dependencies) > 0 {
			line += " ← " + strings.Join(mod.Dependencies, ", ")
		}
		if mod.Waiters > 0 {
			line += fmt.Sprintf(" (waiting: %d)", mod.Waiters)
		}
		_, _ = fmt.Fprintln(w, line)
	}

	if len(info.Requests) == 0 {
		return
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "pending requests: %d\n", len(info.Requests))
	for _, req := range info.Requests {
		flag := ""
		if req.Overdue {
			flag = " overdue"
		}
		_, _ = fmt.Fprintf(
			w, "  %s [%s] unresolved=%s age=%s%s\n",
			req.ID, strings.Join(req.Names, ", "), strings.Join(req.Unresolved, ", "), req.Age, flag,
		)
	}
}

func (r *Runtime) SprintGraph() string {
	var sb strings.Builder
	r.FprintGraph(&sb)
	return sb.String()
}

func (r *Runtime) PrintGraphDOT() {
	r.FprintGraphDOT(os.Stdout)
}

func (r *Runtime) FprintGraphDOT(w io.Writer) {
	info := r.Graph()

	_, _ = fmt.Fprintln(w, "digraph modules {")
	_, _ = fmt.Fprintln(w, "  rankdir=LR;")
	_, _ = fmt.Fprintln(w, "  node [shape=box];")

	for _, mod := range info.Modules {
		style := ""
		switch {
		case mod.Defined && mod.State == StateInvalid:
			style = ", style=filled, fillcolor=salmon"
		case mod.Defined:
			style = ", style=filled, fillcolor=lightblue"
		case mod.Waiters > 0:
			style = ", style=dashed"
		}
		_, _ = fmt.Fprintf(w, "  %q [label=%q%s];\n", mod.Name, escapeLabel(mod.Name), style)
	}

	_, _ = fmt.Fprintln(w)

	for _, mod := range info.Modules {
		for _, dep := range mod.Dependencies {
			_, _ = fmt.Fprintf(w, "  %q -> %q;\n", mod.Name, dep)
		}
	}

	_, _ = fmt.Fprintln(w, "}")
}

func (r *Runtime) SprintGraphDOT() string {
	var sb strings.Builder
	r.FprintGraphDOT(&sb)
	return sb.String()
}

func moduleStatus(mod ModuleInfo) string {
	switch {
	case mod.Defined && mod.State == StateInvalid:
		return "✗"
	case mod.Defined:
		return "●"
	case mod.Declared:
		return "○"
	default:
		return "?"
	}
}

func escapeLabel(s string) string {
	if idx := strings.LastIndex(s, "/"); idx != -1 && idx < len(s)-1 {
		s = s[idx+1:]
	}
	return s
}
