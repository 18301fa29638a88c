package graph

import "sort"

// TrackerScore ranks a domain by how many distinct sites contact it.
type TrackerScore struct {
	Domain string `json:"domain"`
	Score  int    `json:"score"`
}

// CentralTrackers ranks domains by in-degree — the count of distinct
// first-party sites that contact them — descending, ties broken
// lexicographically, truncated to the top k.
func CentralTrackers(g *Graph, k int) []TrackerScore {
	scores := make([]TrackerScore, 0, len(g.in))
	for domain, sources := range g.in {
		if len(sources) == 0 {
			continue
		}
		scores = append(scores, TrackerScore{Domain: domain, Score: len(sources)})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Domain < scores[j].Domain
	})
	if k >= 0 && len(scores) > k {
		scores = scores[:k]
	}
	return scores
}

// TrackingChains enumerates simple directed paths of edge-length 2 through
// maxLength — multi-hop routes along which tracking data plausibly flows.
// Simple-path enumeration forbids node repetition, which bounds the search
// and guarantees termination on cyclic graphs.
func TrackingChains(g *Graph, maxLength int) [][]string {
	if maxLength < 2 {
		return nil
	}
	var chains [][]string
	for _, start := range g.Nodes() {
		visited := map[string]bool{start: true}
		path := []string{start}
		chains = walkChains(g, path, visited, maxLength, chains)
	}
	return chains
}

func walkChains(g *Graph, path []string, visited map[string]bool, maxLength int, chains [][]string) [][]string {
	if len(path)-1 >= maxLength {
		return chains
	}
	for _, next := range g.successors(path[len(path)-1]) {
		if visited[next] {
			continue
		}
		path = append(path, next)
		if len(path)-1 >= 2 {
			chain := make([]string, len(path))
			copy(chain, path)
			chains = append(chains, chain)
		}
		visited[next] = true
		chains = walkChains(g, path, visited, maxLength, chains)
		visited[next] = false
		path = path[:len(path)-1]
	}
	return chains
}
