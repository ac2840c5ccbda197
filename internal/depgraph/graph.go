// Package depgraph analyzes dependencies between named dimensions.
//
// An edge a → b means a's activation depends on b's value. The space
// validator rejects any strongly connected component of size > 1 and any
// self-loop, since such a dimension could never become eligible.
package depgraph

import (
	"fmt"
	"slices"
	"strings"
)

// Graph is a directed graph over names, remembering insertion order so that
// every traversal is deterministic.
type Graph struct {
	nodes []string
	seen  map[string]bool
	edges map[string][]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		seen:  make(map[string]bool),
		edges: make(map[string][]string),
	}
}

// AddNode registers a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.seen[name] {
		return
	}
	g.seen[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge records that from depends on to, adding both nodes if needed.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if !slices.Contains(g.edges[from], to) {
		g.edges[from] = append(g.edges[from], to)
	}
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// Edges returns the dependencies of node in insertion order.
func (g *Graph) Edges(node string) []string {
	return slices.Clone(g.edges[node])
}

// Cycle is a dependency loop. Path starts and ends at the same node.
type Cycle struct {
	Path []string
}

func (c Cycle) String() string {
	return strings.Join(c.Path, " → ")
}

// CycleError is returned by TopoOrder when the graph is not acyclic.
type CycleError struct {
	Cycles []Cycle
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = c.String()
	}
	return fmt.Sprintf("dependency cycle: %s", strings.Join(parts, "; "))
}

// Cycles reports every cycle in the graph, one per strongly connected
// component of size > 1 plus one per self-loop. A DAG returns nil.
func (g *Graph) Cycles() []Cycle {
	var cycles []Cycle
	for _, scc := range g.StronglyConnected() {
		if len(scc) == 1 {
			if g.hasSelfLoop(scc[0]) {
				cycles = append(cycles, Cycle{Path: []string{scc[0], scc[0]}})
			}
			continue
		}
		cycles = append(cycles, Cycle{Path: g.cyclePath(scc)})
	}
	return cycles
}

func (g *Graph) hasSelfLoop(node string) bool {
	return slices.Contains(g.edges[node], node)
}

// StronglyConnected finds strongly connected components using Tarjan's
// algorithm. Components are returned in reverse topological order
// (dependencies first); members of each component are sorted by insertion
// order.
func (g *Graph) StronglyConnected() [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack to form an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.SortFunc(scc, func(a, b string) int {
				return slices.Index(g.nodes, a) - slices.Index(g.nodes, b)
			})
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cyclePath finds a closed walk through an SCC starting at its first member.
// Every SCC of size > 1 contains such a cycle, so the search always succeeds.
func (g *Graph) cyclePath(scc []string) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	visited := make(map[string]bool)
	var path []string

	var dfs func(string) bool
	dfs = func(v string) bool {
		visited[v] = true
		path = append(path, v)
		for _, w := range g.edges[v] {
			if w == start && len(path) > 1 {
				path = append(path, start)
				return true
			}
			if members[w] && !visited[w] && dfs(w) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if !dfs(start) {
		return slices.Clone(scc)
	}
	return path
}

// TopoOrder returns the nodes with every dependency before its dependents.
// Ties keep insertion order. A graph with cycles returns a *CycleError.
func (g *Graph) TopoOrder() ([]string, error) {
	if cycles := g.Cycles(); len(cycles) > 0 {
		return nil, &CycleError{Cycles: cycles}
	}

	placed := make(map[string]bool, len(g.nodes))
	order := make([]string, 0, len(g.nodes))
	for len(order) < len(g.nodes) {
		for _, n := range g.nodes {
			if placed[n] {
				continue
			}
			ready := true
			for _, dep := range g.edges[n] {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				placed[n] = true
				order = append(order, n)
				break
			}
		}
	}
	return order, nil
}
