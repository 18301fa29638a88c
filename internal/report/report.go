package report

import (
	"time"

	"github.com/hadichaudhri/trackerscope/internal/event"
	"github.com/hadichaudhri/trackerscope/internal/fingerprint"
	"github.com/hadichaudhri/trackerscope/internal/graph"
	"github.com/hadichaudhri/trackerscope/internal/pipeline"
	"github.com/hadichaudhri/trackerscope/internal/risk"
	"github.com/hadichaudhri/trackerscope/internal/store"
)

const (
	defaultTopTrackers = 10
	defaultChainLength = 4
)

// Summary condenses the decision log into headline numbers.
type Summary struct {
	TotalRecords       int              `json:"total_records"`
	ByAction           map[string]int64 `json:"by_action"`
	ThirdPartyRequests int              `json:"third_party_requests"`
	TrackerDomains     int              `json:"tracker_domains"`
}

// Report is the assembled analysis for a monitoring run: summary counters,
// graph centrality, tracking chains, and the risk assessment. It marshals
// directly to the JSON report consumers read.
type Report struct {
	GeneratedAt     time.Time            `json:"generated_at"`
	Summary         Summary              `json:"summary"`
	CentralTrackers []graph.TrackerScore `json:"central_trackers,omitempty"`
	Chains          [][]string           `json:"chains,omitempty"`
	Graph           graph.NodeLink       `json:"graph"`
	Risk            risk.Assessment      `json:"risk"`
	Live            *Snapshot            `json:"live,omitempty"`

	// Recent is the bounded tail of the session's decision stream, for
	// consumers that want the last events alongside the aggregates.
	Recent []pipeline.DecisionEvent `json:"recent,omitempty"`
}

// Builder assembles reports from the persistent decision log.
type Builder struct {
	db     *store.Store
	scorer *risk.Scorer

	// TopTrackers bounds the centrality ranking; MaxChainLength bounds
	// chain enumeration. Zero values take the defaults.
	TopTrackers    int
	MaxChainLength int
}

// NewBuilder creates a builder over the given store using the default risk
// policy.
func NewBuilder(db *store.Store) *Builder {
	return &Builder{db: db, scorer: risk.NewScorer(risk.DefaultPolicy())}
}

// WithScorer swaps in a scorer with a custom point policy.
func (b *Builder) WithScorer(s *risk.Scorer) *Builder {
	b.scorer = s
	return b
}

// Build queries log records matching the filter and assembles the full
// report. live carries the in-memory session counters and recent the
// buffered decision tail, when available; offline analysis passes nil for
// both and everything is derived from the records.
func (b *Builder) Build(f store.Filter, live *Snapshot, recent []pipeline.DecisionEvent) (*Report, error) {
	records, err := b.db.QueryLogs(f)
	if err != nil {
		return nil, err
	}

	g := graph.Build(records)
	topK := b.TopTrackers
	if topK <= 0 {
		topK = defaultTopTrackers
	}
	maxLen := b.MaxChainLength
	if maxLen <= 0 {
		maxLen = defaultChainLength
	}
	central := graph.CentralTrackers(g, topK)

	rpt := &Report{
		GeneratedAt:     time.Now().UTC(),
		Summary:         summarize(records, g),
		CentralTrackers: central,
		Chains:          graph.TrackingChains(g, maxLen),
		Graph:           graph.Serialize(g),
		Live:            live,
		Recent:          recent,
	}
	rpt.Risk = b.scorer.Assess(riskInputs(records, central, live))
	return rpt, nil
}

func summarize(records []store.LogRecord, g *graph.Graph) Summary {
	s := Summary{
		TotalRecords:   len(records),
		ByAction:       make(map[string]int64),
		TrackerDomains: len(g.Nodes()),
	}
	for _, rec := range records {
		s.ByAction[rec.Action]++
		if rec.RequestType == string(event.KindRequest) && rec.ThirdParty {
			s.ThirdPartyRequests++
		}
	}
	return s
}

// riskInputs folds records (and live counters when present) into scorer
// inputs. Fingerprint hits and decision counts come from the records so
// offline analysis matches what a live session would have scored.
func riskInputs(records []store.LogRecord, central []graph.TrackerScore, live *Snapshot) risk.Inputs {
	in := risk.Inputs{
		DecisionCounts:  make(map[string]int64),
		FingerprintHits: make(map[fingerprint.Kind]int64),
		CentralTrackers: central,
	}
	for _, rec := range records {
		in.DecisionCounts[rec.Action]++
		if rec.Fingerprint != "" {
			in.FingerprintHits[fingerprint.Kind(rec.Fingerprint)]++
		}
		if rec.RequestType == string(event.KindStorage) && rec.RuleID != "" {
			in.TrackingStorageWrites++
		}
	}
	if live != nil {
		in.CookieRespawns = live.CookieRespawns
	}
	return in
}
