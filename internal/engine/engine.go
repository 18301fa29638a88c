package engine

import (
	"sync"

	"github.com/hadichaudhri/trackerscope/internal/event"
	"github.com/hadichaudhri/trackerscope/internal/fingerprint"
	"github.com/hadichaudhri/trackerscope/internal/rules"
)

// Reason tags which category produced a decision. ReasonFingerprint marks a
// heuristic block with no matching rule; ReasonNone marks a default allow.
type Reason string

const (
	ReasonURL         Reason = "url"
	ReasonCookie      Reason = "cookie"
	ReasonStorage     Reason = "storage"
	ReasonScript      Reason = "script"
	ReasonFingerprint Reason = "fingerprint"
	ReasonNone        Reason = "none"
)

// Decision is the engine's verdict for one event. Exactly one Decision is
// produced per event, synchronously.
type Decision struct {
	Action          rules.Action     `json:"action"`
	RuleID          string           `json:"rule_id,omitempty"`
	Reason          Reason           `json:"reason"`
	FingerprintKind fingerprint.Kind `json:"fingerprint_kind,omitempty"`
}

// Matched reports whether an explicit rule produced this decision.
func (d Decision) Matched() bool { return d.RuleID != "" }

// Engine evaluates events against the rule store and the fingerprint
// heuristics. Evaluation is pure CPU-bound bounded work and never fails: a
// malformed event simply matches nothing and is allowed through.
type Engine struct {
	store    *rules.Store
	detector *fingerprint.Detector

	mu    sync.Mutex
	stats Stats
}

// Stats counts engine outcomes since creation.
type Stats struct {
	Total           int64                      `json:"total"`
	Matched         int64                      `json:"matched"`
	ByAction        map[rules.Action]int64     `json:"by_action"`
	ByRule          map[string]int64           `json:"by_rule"`
	FingerprintHits map[fingerprint.Kind]int64 `json:"fingerprint_hits"`
}

// New creates an engine over the given rule store with fresh fingerprint
// window state.
func New(store *rules.Store) *Engine {
	return &Engine{
		store:    store,
		detector: fingerprint.NewDetector(),
		stats: Stats{
			ByAction:        make(map[rules.Action]int64),
			ByRule:          make(map[string]int64),
			FingerprintHits: make(map[fingerprint.Kind]int64),
		},
	}
}

// eventCategories returns the rule categories an event kind is evaluated
// against, in dispatch order. A match in an earlier category ends
// evaluation entirely.
func eventCategories(e *event.Event) []rules.Category {
	switch e.Kind {
	case event.KindRequest:
		return []rules.Category{rules.CategoryURL}
	case event.KindResponse:
		// Responses carry a URL, possible Set-Cookie headers, and a body
		// that may contain tracking script.
		return []rules.Category{rules.CategoryURL, rules.CategoryCookie, rules.CategoryScript}
	case event.KindStorage:
		if e.Storage != nil && e.Storage.Scope == event.ScopeCookie {
			return []rules.Category{rules.CategoryCookie}
		}
		return []rules.Category{rules.CategoryStorage}
	case event.KindScript:
		return []rules.Category{rules.CategoryScript}
	}
	return nil
}

// Evaluate derives the decision for one event. Within a category, enabled
// rules are tried in ascending priority order (insertion order breaking
// ties) and the first match wins; later rules are never consulted. Script
// calls that match no rule fall through to the fingerprint heuristics,
// which force a block. Everything else is allowed.
func (en *Engine) Evaluate(e *event.Event) Decision {
	d := en.evaluate(e)
	en.record(d)
	return d
}

func (en *Engine) evaluate(e *event.Event) Decision {
	if e == nil {
		return Decision{Action: rules.ActionAllow, Reason: ReasonNone}
	}
	for _, cat := range eventCategories(e) {
		for _, r := range en.store.ListEnabled(cat) {
			rule := r
			if rules.Matches(&rule, e) {
				return Decision{
					Action: rule.Action,
					RuleID: rule.ID,
					Reason: Reason(cat),
				}
			}
		}
	}
	if e.Kind == event.KindScript {
		if kind, ok := en.detector.Classify(e); ok {
			return Decision{
				Action:          rules.ActionBlock,
				Reason:          ReasonFingerprint,
				FingerprintKind: kind,
			}
		}
	}
	return Decision{Action: rules.ActionAllow, Reason: ReasonNone}
}

func (en *Engine) record(d Decision) {
	en.mu.Lock()
	defer en.mu.Unlock()
	en.stats.Total++
	en.stats.ByAction[d.Action]++
	if d.Matched() {
		en.stats.Matched++
		en.stats.ByRule[d.RuleID]++
	}
	if d.Reason == ReasonFingerprint {
		en.stats.FingerprintHits[d.FingerprintKind]++
	}
}

// StatsSnapshot returns a copy of the engine counters.
func (en *Engine) StatsSnapshot() Stats {
	en.mu.Lock()
	defer en.mu.Unlock()
	snap := Stats{
		Total:           en.stats.Total,
		Matched:         en.stats.Matched,
		ByAction:        make(map[rules.Action]int64, len(en.stats.ByAction)),
		ByRule:          make(map[string]int64, len(en.stats.ByRule)),
		FingerprintHits: make(map[fingerprint.Kind]int64, len(en.stats.FingerprintHits)),
	}
	for k, v := range en.stats.ByAction {
		snap.ByAction[k] = v
	}
	for k, v := range en.stats.ByRule {
		snap.ByRule[k] = v
	}
	for k, v := range en.stats.FingerprintHits {
		snap.FingerprintHits[k] = v
	}
	return snap
}
