package report

import (
	"sort"
	"sync"
	"time"

	"github.com/hadichaudhri/trackerscope/internal/engine"
	"github.com/hadichaudhri/trackerscope/internal/event"
	"github.com/hadichaudhri/trackerscope/internal/pipeline"
	"github.com/hadichaudhri/trackerscope/internal/rules"
)

const timeSeriesMinutes = 60

// Stats accumulates real-time counters from a session's decision stream.
// Register Record as a pipeline observer to keep it current.
type Stats struct {
	mu sync.RWMutex

	total       uint64
	blocked     uint64
	allowed     uint64
	fingerprint uint64

	actionCounts map[string]uint64
	ruleCounts   map[string]uint64
	kindCounts   map[string]uint64

	blockedDomains map[string]uint64
	storageWrites  uint64

	// Storage keys seen per domain, by scope. A cookie-scope write of a key
	// already present in local or session storage counts as a respawn: the
	// identifier survived deletion via a backup copy.
	storageKeys map[string]map[string]event.Scope
	respawns    map[string]struct{}

	// Per-minute buckets for the last 60 minutes.
	timeBuckets [timeSeriesMinutes]timeBucket
}

type timeBucket struct {
	minute  time.Time
	count   uint64
	blocked uint64
}

// NewStats creates a stats accumulator.
func NewStats() *Stats {
	return &Stats{
		actionCounts:   make(map[string]uint64),
		ruleCounts:     make(map[string]uint64),
		kindCounts:     make(map[string]uint64),
		blockedDomains: make(map[string]uint64),
		storageKeys:    make(map[string]map[string]event.Scope),
		respawns:       make(map[string]struct{}),
	}
}

// Record ingests a single decision.
func (s *Stats) Record(de pipeline.DecisionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.actionCounts[string(de.Decision.Action)]++
	if de.Event != nil {
		s.kindCounts[string(de.Event.Kind)]++
	}

	switch de.Decision.Action {
	case rules.ActionBlock:
		s.blocked++
		if de.Event != nil {
			if d := de.Event.TargetDomain(); d != "" {
				s.blockedDomains[d]++
			}
		}
	case rules.ActionAllow:
		s.allowed++
	}

	if de.Decision.RuleID != "" {
		s.ruleCounts[de.Decision.RuleID]++
	}
	if de.Decision.Reason == engine.ReasonFingerprint {
		s.fingerprint++
	}

	if de.Event != nil && de.Event.Kind == event.KindStorage && de.Event.Storage != nil {
		s.recordStorage(de.Event.Storage, de.Decision.Matched())
	}

	now := de.Timestamp.Truncate(time.Minute)
	idx := now.Minute() % timeSeriesMinutes
	if s.timeBuckets[idx].minute != now {
		s.timeBuckets[idx] = timeBucket{minute: now}
	}
	s.timeBuckets[idx].count++
	if de.Decision.Action == rules.ActionBlock {
		s.timeBuckets[idx].blocked++
	}
}

func (s *Stats) recordStorage(w *event.StorageWrite, matched bool) {
	if matched {
		s.storageWrites++
	}

	keys := s.storageKeys[w.Domain]
	if keys == nil {
		keys = make(map[string]event.Scope)
		s.storageKeys[w.Domain] = keys
	}
	prev, seen := keys[w.Key]
	if seen && w.Scope == event.ScopeCookie && prev != event.ScopeCookie {
		s.respawns[w.Domain+"\x00"+w.Key] = struct{}{}
	}
	if !seen || w.Scope != event.ScopeCookie {
		keys[w.Key] = w.Scope
	}
}

// DomainCount pairs a domain with how often it was blocked.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  uint64 `json:"count"`
}

// TimeSeriesPoint is a single point in the 60-minute time series.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Count     uint64    `json:"count"`
	Blocked   uint64    `json:"blocked"`
}

// Snapshot is a point-in-time copy of the accumulated counters.
type Snapshot struct {
	Total           uint64            `json:"total"`
	Blocked         uint64            `json:"blocked"`
	Allowed         uint64            `json:"allowed"`
	FingerprintHits uint64            `json:"fingerprint_hits"`
	ActionCounts    map[string]uint64 `json:"action_counts"`
	RuleCounts      map[string]uint64 `json:"rule_counts"`
	KindCounts      map[string]uint64 `json:"kind_counts"`
	TopBlocked      []DomainCount     `json:"top_blocked,omitempty"`
	CookieRespawns  int               `json:"cookie_respawns"`
	StorageWrites   uint64            `json:"storage_writes"`
	TimeSeries      []TimeSeriesPoint `json:"time_series,omitempty"`
}

// Snapshot returns a point-in-time copy of the stats. topN bounds the
// blocked-domain ranking; zero means all.
func (s *Stats) Snapshot(topN int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Total:           s.total,
		Blocked:         s.blocked,
		Allowed:         s.allowed,
		FingerprintHits: s.fingerprint,
		ActionCounts:    copyMap(s.actionCounts),
		RuleCounts:      copyMap(s.ruleCounts),
		KindCounts:      copyMap(s.kindCounts),
		CookieRespawns:  len(s.respawns),
		StorageWrites:   s.storageWrites,
		TopBlocked:      s.topBlocked(topN),
	}

	now := time.Now().UTC().Truncate(time.Minute)
	cutoff := now.Add(-timeSeriesMinutes * time.Minute)
	for i := 0; i < timeSeriesMinutes; i++ {
		t := cutoff.Add(time.Duration(i+1) * time.Minute)
		idx := t.Minute() % timeSeriesMinutes
		b := s.timeBuckets[idx]
		if b.minute == t {
			snap.TimeSeries = append(snap.TimeSeries, TimeSeriesPoint{
				Timestamp: b.minute, Count: b.count, Blocked: b.blocked,
			})
		}
	}
	return snap
}

// topBlocked ranks blocked domains by count descending, domain ascending
// on ties. Caller holds the lock.
func (s *Stats) topBlocked(n int) []DomainCount {
	out := make([]DomainCount, 0, len(s.blockedDomains))
	for d, c := range s.blockedDomains {
		out = append(out, DomainCount{Domain: d, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func copyMap(m map[string]uint64) map[string]uint64 {
	c := make(map[string]uint64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
