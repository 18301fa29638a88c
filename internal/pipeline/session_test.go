package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hadichaudhri/trackerscope/internal/audit"
	"github.com/hadichaudhri/trackerscope/internal/event"
	"github.com/hadichaudhri/trackerscope/internal/rules"
	"github.com/hadichaudhri/trackerscope/internal/store"
)

func newTestSession(t *testing.T, firstParty string, seed ...rules.Rule) (*Session, *store.Store) {
	t.Helper()
	db, err := store.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	rs, err := rules.NewStore(db)
	if err != nil {
		t.Fatalf("creating rule store: %v", err)
	}
	if len(seed) > 0 {
		if err := rs.AddAll(seed); err != nil {
			t.Fatalf("seeding rules: %v", err)
		}
	}
	s := NewSession("s1", firstParty, rs, db, audit.NopLogger(), zerolog.Nop())
	return s, db
}

func TestProcess_BlockedEventIsLoggedOnce(t *testing.T) {
	s, db := newTestSession(t, "site.com",
		rules.Rule{Category: rules.CategoryURL, Pattern: `tracker`, Action: rules.ActionBlock, Priority: 1},
	)

	e := &event.Event{
		Kind:         event.KindRequest,
		Timestamp:    time.Now(),
		Origin:       "site.com",
		IsThirdParty: true,
		Request:      &event.NetworkRequest{URL: "https://tracker.example/px", Method: "GET"},
	}
	eff, err := s.Process(e)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !eff.Suppressed {
		t.Error("blocked request must be suppressed")
	}

	recs, err := db.QueryLogs(store.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(recs))
	}
	if recs[0].Domain != "tracker.example" || !recs[0].ThirdParty {
		t.Errorf("unexpected record: %+v", recs[0])
	}
}

func TestProcess_AllowedUnmatchedIsUnlogged(t *testing.T) {
	s, db := newTestSession(t, "site.com")

	e := &event.Event{
		Kind:      event.KindRequest,
		Timestamp: time.Now(),
		Origin:    "site.com",
		Request:   &event.NetworkRequest{URL: "https://site.com/ok", Method: "GET"},
	}
	if _, err := s.Process(e); err != nil {
		t.Fatal(err)
	}

	recs, err := db.QueryLogs(store.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("allow without a rule must not log, got %d records", len(recs))
	}
}

func TestProcess_NormalizesMissingOrigin(t *testing.T) {
	s, db := newTestSession(t, "site.com",
		rules.Rule{Category: rules.CategoryURL, Pattern: `tracker`, Action: rules.ActionBlock, Priority: 1},
	)

	e := &event.Event{
		Kind:    event.KindRequest,
		Request: &event.NetworkRequest{URL: "https://tracker.example/px", Method: "GET"},
	}
	if _, err := s.Process(e); err != nil {
		t.Fatal(err)
	}
	if e.Origin != "" {
		t.Error("input event must never be mutated")
	}

	recs, err := db.QueryLogs(store.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Origin != "site.com" {
		t.Errorf("expected origin filled from first party, got %q", recs[0].Origin)
	}
	if !recs[0].ThirdParty {
		t.Error("expected third-party flag recomputed against first party")
	}
	if recs[0].Timestamp.IsZero() {
		t.Error("expected timestamp filled")
	}
}

func TestProcess_ObserversSeeEveryDecision(t *testing.T) {
	s, _ := newTestSession(t, "site.com")

	var got []DecisionEvent
	s.AddObserver(func(de DecisionEvent) { got = append(got, de) })

	events := []*event.Event{
		{Kind: event.KindRequest, Timestamp: time.Now(), Origin: "site.com",
			Request: &event.NetworkRequest{URL: "https://site.com/a", Method: "GET"}},
		{Kind: event.KindStorage, Timestamp: time.Now(), Origin: "site.com",
			Storage: &event.StorageWrite{Domain: "site.com", Scope: event.ScopeLocal, Key: "theme"}},
	}
	for _, e := range events {
		if _, err := s.Process(e); err != nil {
			t.Fatal(err)
		}
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 observer calls, got %d", len(got))
	}
	if got[0].Session != "s1" {
		t.Errorf("expected session id on decision, got %q", got[0].Session)
	}
}

func TestSession_DecisionStreamEntries(t *testing.T) {
	db, err := store.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	rs, err := rules.NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	if err := rs.AddAll([]rules.Rule{
		{Category: rules.CategoryURL, Pattern: `tracker`, Action: rules.ActionBlock, Priority: 1},
	}); err != nil {
		t.Fatal(err)
	}

	var buf strings.Builder
	s := NewSession("s1", "site.com", rs, db, audit.NewLogger(&buf), zerolog.Nop())

	blocked := &event.Event{
		Kind:      event.KindRequest,
		Timestamp: time.Now(),
		Origin:    "site.com",
		Request:   &event.NetworkRequest{URL: "https://tracker.example/px", Method: "GET"},
	}
	allowed := &event.Event{
		Kind:      event.KindRequest,
		Timestamp: time.Now(),
		Origin:    "site.com",
		Request:   &event.NetworkRequest{URL: "https://site.com/ok", Method: "GET"},
	}
	if _, err := s.Process(blocked); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Process(allowed); err != nil {
		t.Fatal(err)
	}

	out := strings.TrimSpace(buf.String())
	lines := strings.Split(out, "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 stream line (allow-unmatched silent), got %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], `"action":"block"`) {
		t.Errorf("expected a block entry, got %q", lines[0])
	}
}

func TestManager_Sessions(t *testing.T) {
	db, err := store.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	rs, err := rules.NewStore(db)
	if err != nil {
		t.Fatal(err)
	}

	m := NewManager(rs, db, audit.NopLogger(), zerolog.Nop())
	a := m.Create("site.com")
	b := m.Create("blog.net")

	if a.ID() == b.ID() {
		t.Error("sessions must get distinct IDs")
	}
	if got, ok := m.Get(a.ID()); !ok || got.FirstParty() != "site.com" {
		t.Error("expected to look up session a")
	}
	if len(m.List()) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(m.List()))
	}

	m.Delete(a.ID())
	if _, ok := m.Get(a.ID()); ok {
		t.Error("deleted session must be gone")
	}
}
