package graph

import (
	"errors"
	"sort"
)

var ErrCycleDetected = errors.New("cycle detected in graph")

// TopologicalSort orders nodes so that every node follows its declared
// dependencies. Ties are broken by name.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodeCount := len(g.nodes)
	dependents := make(map[string][]string, nodeCount)
	inDegree := make(map[string]int, nodeCount)

	for name := range g.nodes {
		inDegree[name] = 0
	}

	for name, node := range g.nodes {
		for _, dep := range node.Dependencies {
			if _, exists := g.nodes[dep]; exists {
				dependents[dep] = append(dependents[dep], name)
				inDegree[name]++
			}
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var sorted []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		sorted = append(sorted, node)

		next := dependents[node]
		sort.Strings(next)
		for _, dependent := range next {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != nodeCount {
		return nil, ErrCycleDetected
	}

	return sorted, nil
}
