package graph

import (
	"sort"
	"sync"
)

// Node is a module and the dependencies it was declared with. Defined is
// false while a deferred definition is still waiting on its dependencies.
type Node struct {
	Name         string
	Dependencies []string
	Defined      bool
}

type Graph struct {
	mu         sync.RWMutex
	nodes      map[string]*Node
	cycleValid bool
	hasCycle   bool
}

func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
	}
}

func (g *Graph) AddNode(name string, dependencies []string, defined bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	deps := make([]string, len(dependencies))
	copy(deps, dependencies)

	g.nodes[name] = &Node{
		Name:         name,
		Dependencies: deps,
		Defined:      defined,
	}
	g.cycleValid = false
}

// MarkDefined flags name as defined, adding a dependency-free node if it was
// never declared.
func (g *Graph) MarkDefined(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if node, exists := g.nodes[name]; exists {
		node.Defined = true
		return
	}
	g.nodes[name] = &Node{Name: name, Defined: true}
	g.cycleValid = false
}

func (g *Graph) HasNode(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, exists := g.nodes[name]
	return exists
}

func (g *Graph) GetNode(name string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, exists := g.nodes[name]
	if !exists {
		return Node{}, false
	}

	deps := make([]string, len(node.Dependencies))
	copy(deps, node.Dependencies)
	return Node{Name: node.Name, Dependencies: deps, Defined: node.Defined}, true
}

func (g *Graph) GetDependents(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for id, node := range g.nodes {
		for _, dep := range node.Dependencies {
			if dep == name {
				dependents = append(dependents, id)
				break
			}
		}
	}
	sort.Strings(dependents)
	return dependents
}

func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)
	return nodes
}

func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]*Node)
	g.cycleValid = false
}

// Missing returns dependencies that no node declares, sorted.
func (g *Graph) Missing() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var missing []string
	seen := make(map[string]bool)

	for _, node := range g.nodes {
		for _, dep := range node.Dependencies {
			if _, exists := g.nodes[dep]; !exists && !seen[dep] {
				missing = append(missing, dep)
				seen[dep] = true
			}
		}
	}

	sort.Strings(missing)
	return missing
}

