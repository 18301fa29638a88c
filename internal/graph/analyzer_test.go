package graph

import (
	"reflect"
	"testing"
)

func fixtureGraph() *Graph {
	g := New()
	g.AddEdge("site.com", "sync.example")
	g.AddEdge("site.com", "ads.example")
	g.AddEdge("sync.example", "ads.example")
	return g
}

func TestCentralTrackers_Ranking(t *testing.T) {
	g := fixtureGraph()

	got := CentralTrackers(g, 10)
	want := []TrackerScore{
		{Domain: "ads.example", Score: 2},
		{Domain: "sync.example", Score: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCentralTrackers_LexicographicTieBreak(t *testing.T) {
	g := New()
	g.AddEdge("a.com", "zeta.example")
	g.AddEdge("a.com", "alpha.example")

	got := CentralTrackers(g, 10)
	if len(got) != 2 || got[0].Domain != "alpha.example" || got[1].Domain != "zeta.example" {
		t.Errorf("equal scores must order lexicographically, got %v", got)
	}
}

func TestCentralTrackers_Truncation(t *testing.T) {
	g := fixtureGraph()

	got := CentralTrackers(g, 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Domain != "ads.example" {
		t.Errorf("expected the top tracker, got %s", got[0].Domain)
	}
}

func TestTrackingChains_EnumeratesMultiHop(t *testing.T) {
	g := fixtureGraph()

	chains := TrackingChains(g, 4)
	want := [][]string{{"site.com", "sync.example", "ads.example"}}
	if !reflect.DeepEqual(chains, want) {
		t.Errorf("expected %v, got %v", want, chains)
	}
}

func TestTrackingChains_MaxLengthBounds(t *testing.T) {
	g := New()
	g.AddEdge("a.com", "b.com")
	g.AddEdge("b.com", "c.com")
	g.AddEdge("c.com", "d.com")

	short := TrackingChains(g, 2)
	for _, chain := range short {
		if len(chain)-1 > 2 {
			t.Errorf("chain exceeds maxLength 2: %v", chain)
		}
	}
	wantShort := [][]string{
		{"a.com", "b.com", "c.com"},
		{"b.com", "c.com", "d.com"},
	}
	if !reflect.DeepEqual(short, wantShort) {
		t.Errorf("expected %v, got %v", wantShort, short)
	}

	long := TrackingChains(g, 3)
	if len(long) != 3 {
		t.Errorf("expected the 3-hop chain included at maxLength 3, got %v", long)
	}
}

func TestTrackingChains_CyclesTerminate(t *testing.T) {
	g := New()
	g.AddEdge("a.com", "b.com")
	g.AddEdge("b.com", "a.com")
	g.AddEdge("b.com", "c.com")

	chains := TrackingChains(g, 5)
	for _, chain := range chains {
		seen := make(map[string]bool)
		for _, n := range chain {
			if seen[n] {
				t.Errorf("chain repeats a node: %v", chain)
			}
			seen[n] = true
		}
	}
}

func TestTrackingChains_TooShortMax(t *testing.T) {
	if got := TrackingChains(fixtureGraph(), 1); got != nil {
		t.Errorf("maxLength below 2 must yield nothing, got %v", got)
	}
}
