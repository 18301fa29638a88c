package risk

import (
	"fmt"

	"github.com/hadichaudhri/trackerscope/internal/fingerprint"
	"github.com/hadichaudhri/trackerscope/internal/graph"
)

// Impact grades a finding.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Finding is one categorized observation in a risk assessment.
type Finding struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Impact      Impact `json:"impact"`
	Mitigation  string `json:"mitigation"`
}

// Recommendation is a suggested follow-up for the session owner.
type Recommendation struct {
	Priority       string `json:"priority"`
	Description    string `json:"description"`
	Implementation string `json:"implementation"`
}

// Assessment is the scored summary of a session's tracking behavior.
type Assessment struct {
	HighRisk        []Finding        `json:"high_risk"`
	MediumRisk      []Finding        `json:"medium_risk"`
	LowRisk         []Finding        `json:"low_risk"`
	Score           int              `json:"score"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// Policy holds the point value each detected condition contributes. The
// table is tunable; scoring over any table is additive, monotonic, and
// clamped to [0,100].
type Policy struct {
	PersistentFingerprinting int
	CentralTracker           int
	CentralTrackerMinDegree  int
	CookieRespawning         int
	BlockedTrackingRequests  int
	TrackingStorageWrites    int
}

// DefaultPolicy is the stock point table.
func DefaultPolicy() Policy {
	return Policy{
		PersistentFingerprinting: 30,
		CentralTracker:           20,
		CentralTrackerMinDegree:  3,
		CookieRespawning:         15,
		BlockedTrackingRequests:  10,
		TrackingStorageWrites:    5,
	}
}

// Inputs aggregates everything the scorer folds over: engine decision
// counts, fingerprint heuristic hits, graph centrality, and cookie
// respawn detections.
type Inputs struct {
	DecisionCounts        map[string]int64
	FingerprintHits       map[fingerprint.Kind]int64
	CentralTrackers       []graph.TrackerScore
	CookieRespawns        int
	TrackingStorageWrites int64
}

// Scorer turns aggregated inputs into an assessment under a point policy.
type Scorer struct {
	policy Policy
}

// NewScorer creates a scorer. A zero-valued policy falls back to the
// default table.
func NewScorer(p Policy) *Scorer {
	if p == (Policy{}) {
		p = DefaultPolicy()
	}
	return &Scorer{policy: p}
}

// Assess produces the risk assessment. Adding a condition never lowers the
// score, identical inputs always score identically, and the result is
// clamped to [0,100].
func (s *Scorer) Assess(in Inputs) Assessment {
	var a Assessment
	score := 0

	if totalHits(in.FingerprintHits) > 0 {
		a.HighRisk = append(a.HighRisk, Finding{
			Kind:        "persistent_fingerprinting",
			Description: fmt.Sprintf("Device fingerprinting detected (%d API calls flagged)", totalHits(in.FingerprintHits)),
			Impact:      ImpactHigh,
			Mitigation:  "Use anti-fingerprinting tools or block the offending scripts",
		})
		score += s.policy.PersistentFingerprinting
	}

	for _, t := range in.CentralTrackers {
		if t.Score >= s.policy.CentralTrackerMinDegree {
			a.HighRisk = append(a.HighRisk, Finding{
				Kind:        "central_tracker",
				Description: fmt.Sprintf("%s is contacted by %d distinct sites", t.Domain, t.Score),
				Impact:      ImpactHigh,
				Mitigation:  "Block requests to this domain",
			})
			score += s.policy.CentralTracker
			break
		}
	}

	if in.CookieRespawns > 0 {
		a.MediumRisk = append(a.MediumRisk, Finding{
			Kind:        "cookie_respawning",
			Description: fmt.Sprintf("%d deleted tracking identifiers were recreated from backup copies", in.CookieRespawns),
			Impact:      ImpactMedium,
			Mitigation:  "Clear storage alongside cookies",
		})
		score += s.policy.CookieRespawning
	}

	if blocked := in.DecisionCounts["block"]; blocked > 0 {
		a.MediumRisk = append(a.MediumRisk, Finding{
			Kind:        "tracking_requests",
			Description: fmt.Sprintf("%d tracking events were blocked during the session", blocked),
			Impact:      ImpactMedium,
			Mitigation:  "Keep blocking rules enabled",
		})
		score += s.policy.BlockedTrackingRequests
	}

	if in.TrackingStorageWrites > 0 {
		a.LowRisk = append(a.LowRisk, Finding{
			Kind:        "tracking_storage",
			Description: fmt.Sprintf("%d tracking identifiers written to browser storage", in.TrackingStorageWrites),
			Impact:      ImpactLow,
			Mitigation:  "Clear site data regularly",
		})
		score += s.policy.TrackingStorageWrites
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	a.Score = score
	a.Recommendations = s.recommend(a)
	return a
}

// recommend derives follow-ups from the assessment's findings.
func (s *Scorer) recommend(a Assessment) []Recommendation {
	var recs []Recommendation
	if len(a.HighRisk) > 0 {
		recs = append(recs, Recommendation{
			Priority:       "high",
			Description:    "Implement comprehensive tracker blocking",
			Implementation: "Enable the default rule set and add rules for the flagged domains",
		})
	}
	if a.Score >= 50 {
		recs = append(recs, Recommendation{
			Priority:       "medium",
			Description:    "Schedule regular cleanup of tracking cookies and storage",
			Implementation: "Use browser privacy settings or a privacy-focused extension",
		})
	}
	return recs
}

func totalHits(hits map[fingerprint.Kind]int64) int64 {
	var n int64
	for _, v := range hits {
		n += v
	}
	return n
}
