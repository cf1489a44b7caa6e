package graph

import "sort"

type cycleDetector struct {
	graph   *Graph
	index   int
	stack   []string
	onStack map[string]bool
	indices map[string]int
	lowlink map[string]int
	sccs    [][]string
}

func (g *Graph) detectCyclesUnsafe() [][]string {
	detector := &cycleDetector{
		graph:   g,
		stack:   make([]string, 0),
		onStack: make(map[string]bool),
		indices: make(map[string]int),
		lowlink: make(map[string]int),
	}

	for _, name := range g.sortedNamesUnsafe() {
		if _, visited := detector.indices[name]; !visited {
			detector.strongConnect(name)
		}
	}

	var cycles [][]string
	for _, scc := range detector.sccs {
		if len(scc) > 1 {
			sort.Strings(scc)
			cycles = append(cycles, scc)
			continue
		}
		name := scc[0]
		for _, dep := range g.nodes[name].Dependencies {
			if dep == name {
				cycles = append(cycles, scc)
				break
			}
		}
	}

	return cycles
}

func (d *cycleDetector) strongConnect(name string) {
	d.indices[name] = d.index
	d.lowlink[name] = d.index
	d.index++
	d.stack = append(d.stack, name)
	d.onStack[name] = true

	for _, dep := range d.graph.nodes[name].Dependencies {
		if _, exists := d.graph.nodes[dep]; !exists {
			continue
		}

		if _, visited := d.indices[dep]; !visited {
			d.strongConnect(dep)
			d.lowlink[name] = min(d.lowlink[name], d.lowlink[dep])
		} else if d.onStack[dep] {
			d.lowlink[name] = min(d.lowlink[name], d.indices[dep])
		}
	}

	if d.lowlink[name] == d.indices[name] {
		var scc []string
		for {
			n := len(d.stack) - 1
			w := d.stack[n]
			d.stack = d.stack[:n]
			d.onStack[w] = false
			scc = append(scc, w)
			if w == name {
				break
			}
		}
		d.sccs = append(d.sccs, scc)
	}
}

func (g *Graph) HasCycle() bool {
	g.mu.RLock()
	if g.cycleValid {
		result := g.hasCycle
		g.mu.RUnlock()
		return result
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cycleValid {
		return g.hasCycle
	}

	g.hasCycle = len(g.detectCyclesUnsafe()) > 0
	g.cycleValid = true
	return g.hasCycle
}

// FindCyclePath returns a dependency path from start back to a node already
// on the path, ending with the repeated node, or nil.
func (g *Graph) FindCyclePath(start string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.findCyclePathUnsafe(start)
}

func (g *Graph) findCyclePathUnsafe(start string) []string {
	visited := make(map[string]bool)
	path := make([]string, 0)
	inPath := make(map[string]bool)

	var dfs func(name string) []string
	dfs = func(name string) []string {
		if inPath[name] {
			cyclePath := make([]string, 0)
			found := false
			for _, p := range path {
				if p == name {
					found = true
				}
				if found {
					cyclePath = append(cyclePath, p)
				}
			}
			return append(cyclePath, name)
		}

		if visited[name] {
			return nil
		}

		visited[name] = true
		path = append(path, name)
		inPath[name] = true

		node, exists := g.nodes[name]
		if exists {
			for _, dep := range node.Dependencies {
				if _, ok := g.nodes[dep]; !ok {
					continue
				}
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			}
		}

		path = path[:len(path)-1]
		inPath[name] = false
		return nil
	}

	return dfs(start)
}

func (g *Graph) GetAllCyclePaths() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cycles := g.detectCyclesUnsafe()
	if len(cycles) == 0 {
		return nil
	}

	var allPaths [][]string
	for _, scc := range cycles {
		if path := g.findCyclePathUnsafe(scc[0]); path != nil {
			allPaths = append(allPaths, path)
		}
	}

	return allPaths
}

func (g *Graph) sortedNamesUnsafe() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
