package pipeline

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hadichaudhri/trackerscope/internal/audit"
	"github.com/hadichaudhri/trackerscope/internal/engine"
	"github.com/hadichaudhri/trackerscope/internal/event"
	"github.com/hadichaudhri/trackerscope/internal/executor"
	"github.com/hadichaudhri/trackerscope/internal/rules"
	"github.com/hadichaudhri/trackerscope/internal/store"
)

// DecisionEvent is what observers receive for every processed event.
type DecisionEvent struct {
	Timestamp  time.Time       `json:"timestamp"`
	Session    string          `json:"session"`
	Event      *event.Event    `json:"event"`
	Decision   engine.Decision `json:"decision"`
	Suppressed bool            `json:"suppressed"`
}

// Observer is a callback invoked for every decision in a session.
type Observer func(DecisionEvent)

// Session processes one browsing session's event stream, strictly in
// arrival order: evaluate, apply, log, notify. Each session owns its own
// engine (and therefore its own fingerprint window state) while sharing the
// rule store and record store with every other session.
type Session struct {
	id         string
	firstParty string
	engine     *engine.Engine
	exec       *executor.Executor
	decisions  *audit.Logger
	log        zerolog.Logger

	observerMu sync.RWMutex
	observers  []Observer
}

// NewSession creates a session for the given first-party domain.
func NewSession(id, firstParty string, ruleStore *rules.Store, db *store.Store, decisions *audit.Logger, log zerolog.Logger) *Session {
	if decisions == nil {
		decisions = audit.NopLogger()
	}
	return &Session{
		id:         id,
		firstParty: firstParty,
		engine:     engine.New(ruleStore),
		exec:       executor.New(db),
		decisions:  decisions,
		log:        log.With().Str("session", id).Logger(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// FirstParty returns the session's first-party domain.
func (s *Session) FirstParty() string { return s.firstParty }

// AddObserver registers a callback invoked for every decision.
func (s *Session) AddObserver(fn Observer) {
	s.observerMu.Lock()
	defer s.observerMu.Unlock()
	s.observers = append(s.observers, fn)
}

// Process runs one event through the engine and executor. A store failure
// is returned unwrapped so the caller can halt ingestion; everything else
// never fails.
func (s *Session) Process(e *event.Event) (executor.EffectiveEvent, error) {
	e = s.normalize(e)

	decision := s.engine.Evaluate(e)
	eff, err := s.exec.Apply(e, decision)
	if err != nil {
		s.log.Error().Err(err).Msg("record store unavailable, halting ingestion")
		return eff, err
	}

	if decision.Action != rules.ActionAllow || decision.Matched() {
		s.decisions.Log(audit.Entry{
			Timestamp:  e.Timestamp,
			Session:    s.id,
			Kind:       string(e.Kind),
			Action:     string(decision.Action),
			Reason:     string(decision.Reason),
			RuleID:     decision.RuleID,
			Domain:     e.TargetDomain(),
			URL:        e.URL(),
			Suppressed: eff.Suppressed,
		})
	}

	s.notify(DecisionEvent{
		Timestamp:  time.Now().UTC(),
		Session:    s.id,
		Event:      e,
		Decision:   decision,
		Suppressed: eff.Suppressed,
	})
	return eff, nil
}

// normalize fills fields the interception collaborator may omit. The input
// event is never mutated; a filled copy is returned instead.
func (s *Session) normalize(e *event.Event) *event.Event {
	if e.Timestamp.IsZero() || (e.Origin == "" && s.firstParty != "") {
		clone := *e
		if clone.Timestamp.IsZero() {
			clone.Timestamp = time.Now().UTC()
		}
		if clone.Origin == "" && s.firstParty != "" {
			clone.Origin = s.firstParty
			if td := clone.TargetDomain(); td != "" {
				clone.IsThirdParty = td != s.firstParty
			}
		}
		return &clone
	}
	return e
}

// StatsSnapshot exposes the session engine's counters.
func (s *Session) StatsSnapshot() engine.Stats {
	return s.engine.StatsSnapshot()
}

func (s *Session) notify(de DecisionEvent) {
	s.observerMu.RLock()
	observers := s.observers
	s.observerMu.RUnlock()
	for _, fn := range observers {
		fn(de)
	}
}
