// Package pipeline runs the preprocessing job graph: a small DAG of shell
// commands and in-process steps whose failures propagate into the raw data's
// preprocessing status.
package pipeline

import (
	"context"
	"fmt"
	"sort"
)

// Node is one unit of work. Either Command (an argv launched through the
// executor's runner) or Step (an in-process function) is set, not both.
// RequiresDeps marks nodes that consume results handed over by their
// dependencies rather than merely ordering after them; skipping after an
// upstream failure follows graph edges for every node regardless of the
// flag.
type Node struct {
	ID           string
	Command      []string
	Step         func(ctx context.Context) error
	RequiresDeps bool
}

// Graph is a directed acyclic dependency graph of nodes.
type Graph struct {
	nodes map[string]Node
	deps  map[string][]string // node -> its dependencies
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: map[string]Node{},
		deps:  map[string][]string{},
	}
}

// AddNode registers a node. Duplicate ids are rejected.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("node id must not be empty")
	}
	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("duplicate node %q", n.ID)
	}
	if (n.Command == nil) == (n.Step == nil) {
		return fmt.Errorf("node %q must set exactly one of Command and Step", n.ID)
	}
	g.nodes[n.ID] = n
	return nil
}

// AddEdge records that "to" depends on "from". Both nodes must exist.
func (g *Graph) AddEdge(from, to string) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("unknown node %q", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("unknown node %q", to)
	}
	g.deps[to] = append(g.deps[to], from)
	return nil
}

// TopoSort orders the nodes so every dependency precedes its dependents,
// breaking ties by node id so runs are deterministic. A cycle is an error.
func (g *Graph) TopoSort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = 0
	}
	for to, froms := range g.deps {
		indegree[to] += len(froms)
		for _, from := range froms {
			dependents[from] = append(dependents[from], to)
		}
	}

	var ready []string
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		added := false
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
				added = true
			}
		}
		if added {
			sort.Strings(ready)
		}
	}
	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("dependency cycle among %d nodes", len(g.nodes)-len(order))
	}
	return order, nil
}
