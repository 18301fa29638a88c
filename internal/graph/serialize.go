package graph

import "sort"

// Edge is one serialized directed edge with its request count.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// NodeLink is the node/edge-list form of a graph, for visualization
// consumers. Nodes and edges are sorted so identical graphs serialize
// identically.
type NodeLink struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// Serialize flattens the graph into its node/edge-list form.
func Serialize(g *Graph) NodeLink {
	nl := NodeLink{Nodes: g.Nodes()}
	for src, dests := range g.out {
		for dst, count := range dests {
			nl.Edges = append(nl.Edges, Edge{Source: src, Target: dst, Count: count})
		}
	}
	sort.Slice(nl.Edges, func(i, j int) bool {
		if nl.Edges[i].Source != nl.Edges[j].Source {
			return nl.Edges[i].Source < nl.Edges[j].Source
		}
		return nl.Edges[i].Target < nl.Edges[j].Target
	})
	return nl
}
