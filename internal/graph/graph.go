package graph

import (
	"sort"

	"github.com/hadichaudhri/trackerscope/internal/event"
	"github.com/hadichaudhri/trackerscope/internal/store"
)

// Graph is the cross-domain tracking graph: nodes are domains, a directed
// edge A→B means "a page on A caused a request to B", with a multiplicity
// count per edge. The structure is a plain adjacency map — enough for the
// two analyses that run over it.
type Graph struct {
	out map[string]map[string]int
	in  map[string]map[string]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		out: make(map[string]map[string]int),
		in:  make(map[string]map[string]struct{}),
	}
}

// AddEdge records one source→destination request. Empty endpoints and
// self-loops are dropped.
func (g *Graph) AddEdge(source, dest string) {
	if source == "" || dest == "" || source == dest {
		return
	}
	if g.out[source] == nil {
		g.out[source] = make(map[string]int)
	}
	g.out[source][dest]++
	if g.in[dest] == nil {
		g.in[dest] = make(map[string]struct{})
	}
	g.in[dest][source] = struct{}{}
	if g.in[source] == nil {
		g.in[source] = make(map[string]struct{})
	}
}

// Build constructs the graph from log records in a single pass. Only
// third-party network request records contribute edges; rebuilding from the
// same record set always yields the same graph.
func Build(records []store.LogRecord) *Graph {
	g := New()
	for _, rec := range records {
		if rec.RequestType != string(event.KindRequest) || !rec.ThirdParty {
			continue
		}
		dest := rec.Domain
		if dest == "" {
			dest = event.Domain(rec.URL)
		}
		g.AddEdge(rec.Origin, dest)
	}
	return g
}

// Nodes returns all domains in the graph, sorted.
func (g *Graph) Nodes() []string {
	seen := make(map[string]struct{})
	for src, dests := range g.out {
		seen[src] = struct{}{}
		for d := range dests {
			seen[d] = struct{}{}
		}
	}
	nodes := make([]string, 0, len(seen))
	for n := range seen {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// EdgeCount returns the number of distinct directed edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, dests := range g.out {
		n += len(dests)
	}
	return n
}

// Multiplicity returns how many requests back the source→dest edge, or 0 if
// the edge does not exist.
func (g *Graph) Multiplicity(source, dest string) int {
	return g.out[source][dest]
}

// InDegree returns how many distinct domains caused requests to dest.
func (g *Graph) InDegree(dest string) int {
	return len(g.in[dest])
}

// OutDegree returns how many distinct domains dest itself contacted.
func (g *Graph) OutDegree(source string) int {
	return len(g.out[source])
}

// successors returns the sorted destinations of a node, for deterministic
// traversal order.
func (g *Graph) successors(source string) []string {
	dests := g.out[source]
	out := make([]string, 0, len(dests))
	for d := range dests {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
