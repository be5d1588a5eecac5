package graph

import (
	"fmt"
	"strings"
)

// CircularDependencyError reports a dependency cycle. Cycle starts and
// ends with the same name, e.g. [a b c a].
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

// Graph is a directed dependency graph. An edge from a to b means a depends
// on b. Nodes and edges keep insertion order so every traversal is
// deterministic. A Graph is not safe for concurrent use.
type Graph struct {
	nodes []string
	index map[string]int
	deps  map[string][]string
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		index: make(map[string]int),
		deps:  make(map[string][]string),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// HasNode reports whether name is in the graph
func (g *Graph) HasNode(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Nodes returns node names in insertion order
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// AddEdge records that from depends on to. Missing nodes are added.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	for _, d := range g.deps[from] {
		if d == to {
			return
		}
	}
	g.deps[from] = append(g.deps[from], to)
}

// Dependencies returns the direct dependencies of name in insertion order
func (g *Graph) Dependencies(name string) []string {
	out := make([]string, len(g.deps[name]))
	copy(out, g.deps[name])
	return out
}

// Dependents returns the nodes that directly depend on name, in node order
func (g *Graph) Dependents(name string) []string {
	var out []string
	for _, n := range g.nodes {
		for _, d := range g.deps[n] {
			if d == name {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// Path returns a dependency path from -> ... -> to, or nil when to is not
// reachable from from. A node always reaches itself.
func (g *Graph) Path(from, to string) []string {
	visited := make(map[string]bool)
	var walk func(n string) []string
	walk = func(n string) []string {
		if n == to {
			return []string{n}
		}
		if visited[n] {
			return nil
		}
		visited[n] = true
		for _, d := range g.deps[n] {
			if p := walk(d); p != nil {
				return append([]string{n}, p...)
			}
		}
		return nil
	}
	return walk(from)
}

// Reaches reports whether to is reachable from from
func (g *Graph) Reaches(from, to string) bool {
	return g.Path(from, to) != nil
}

// CheckEdge returns a CircularDependencyError if adding from -> to would
// close a cycle.
func (g *Graph) CheckEdge(from, to string) error {
	p := g.Path(to, from)
	if p == nil {
		return nil
	}
	return &CircularDependencyError{Cycle: append([]string{from}, p...)}
}

const (
	unvisited = iota
	visiting
	visited
)

// TopologicalSort orders nodes so every dependency precedes its dependents.
// Roots are visited in insertion order and dependencies in edge order, so the
// result is stable for a given construction sequence.
func (g *Graph) TopologicalSort() ([]string, error) {
	color := make(map[string]int, len(g.nodes))
	order := make([]string, 0, len(g.nodes))
	var stack []string

	var visit func(n string) error
	visit = func(n string) error {
		switch color[n] {
		case visited:
			return nil
		case visiting:
			cycle := []string{n}
			for i := len(stack) - 1; i >= 0; i-- {
				cycle = append([]string{stack[i]}, cycle...)
				if stack[i] == n {
					break
				}
			}
			return &CircularDependencyError{Cycle: cycle}
		}

		color[n] = visiting
		stack = append(stack, n)
		for _, d := range g.deps[n] {
			if err := visit(d); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = visited
		order = append(order, n)
		return nil
	}

	for _, n := range g.nodes {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// TransitiveDependencies returns name and everything it depends on,
// directly or not.
func (g *Graph) TransitiveDependencies(name string) map[string]bool {
	seen := make(map[string]bool)
	var walk func(n string)
	walk = func(n string) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, d := range g.deps[n] {
			walk(d)
		}
	}
	walk(name)
	return seen
}

// TransitiveDependents returns name and everything that depends on it,
// directly or not.
func (g *Graph) TransitiveDependents(name string) map[string]bool {
	seen := make(map[string]bool)
	var walk func(n string)
	walk = func(n string) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, d := range g.Dependents(n) {
			walk(d)
		}
	}
	walk(name)
	return seen
}
