package engine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hadichaudhri/trackerscope/internal/event"
	"github.com/hadichaudhri/trackerscope/internal/rules"
	"github.com/hadichaudhri/trackerscope/internal/store"
)

func newTestEngine(t *testing.T, seed ...rules.Rule) *Engine {
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
	return New(rs)
}

func requestEvent(url string) *event.Event {
	return &event.Event{
		Kind:      event.KindRequest,
		Timestamp: time.Now(),
		Request:   &event.NetworkRequest{URL: url, Method: "GET"},
	}
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	en := newTestEngine(t,
		rules.Rule{Category: rules.CategoryURL, Pattern: `tracker`, Action: rules.ActionLog, Priority: 5},
		rules.Rule{Category: rules.CategoryURL, Pattern: `tracker`, Action: rules.ActionBlock, Priority: 1},
	)

	d := en.Evaluate(requestEvent("https://tracker.example/collect"))
	if d.Action != rules.ActionBlock {
		t.Errorf("expected the lower-priority-number rule to win, got %s", d.Action)
	}
	if d.Reason != ReasonURL {
		t.Errorf("expected url reason, got %s", d.Reason)
	}
	if d.RuleID == "" {
		t.Error("expected a matched rule ID")
	}
}

func TestEvaluate_InsertionOrderBreaksTies(t *testing.T) {
	en := newTestEngine(t,
		rules.Rule{Category: rules.CategoryURL, Pattern: `tracker`, Action: rules.ActionLog, Priority: 3},
		rules.Rule{Category: rules.CategoryURL, Pattern: `tracker`, Action: rules.ActionBlock, Priority: 3},
	)

	d := en.Evaluate(requestEvent("https://tracker.example/collect"))
	if d.Action != rules.ActionLog {
		t.Errorf("expected the earlier-inserted rule to win, got %s", d.Action)
	}
}

func TestEvaluate_DefaultAllow(t *testing.T) {
	en := newTestEngine(t)

	d := en.Evaluate(requestEvent("https://site.com/api/articles"))
	if d.Action != rules.ActionAllow {
		t.Errorf("expected allow, got %s", d.Action)
	}
	if d.Reason != ReasonNone {
		t.Errorf("expected reason none, got %s", d.Reason)
	}
	if d.Matched() {
		t.Error("default allow must not claim a rule")
	}
}

func TestEvaluate_CookieScopeDispatch(t *testing.T) {
	en := newTestEngine(t,
		rules.Rule{Category: rules.CategoryCookie, Pattern: `_ga`, Action: rules.ActionBlock, Priority: 1},
		rules.Rule{Category: rules.CategoryStorage, Pattern: `_ga`, Action: rules.ActionLog, Priority: 1},
	)

	cookie := &event.Event{
		Kind:    event.KindStorage,
		Storage: &event.StorageWrite{Domain: "site.com", Scope: event.ScopeCookie, Key: "_ga"},
	}
	if d := en.Evaluate(cookie); d.Action != rules.ActionBlock || d.Reason != ReasonCookie {
		t.Errorf("cookie write: expected block/cookie, got %s/%s", d.Action, d.Reason)
	}

	local := &event.Event{
		Kind:    event.KindStorage,
		Storage: &event.StorageWrite{Domain: "site.com", Scope: event.ScopeLocal, Key: "_ga"},
	}
	if d := en.Evaluate(local); d.Action != rules.ActionLog || d.Reason != ReasonStorage {
		t.Errorf("local write: expected log/storage, got %s/%s", d.Action, d.Reason)
	}
}

func TestEvaluate_CatchAllNeverReachedAfterMatch(t *testing.T) {
	en := newTestEngine(t,
		rules.Rule{Category: rules.CategoryCookie, Pattern: `_ga`, Action: rules.ActionBlock, Priority: 1},
		rules.Rule{Category: rules.CategoryCookie, Pattern: `.*`, Action: rules.ActionLog, Priority: 2},
	)

	e := &event.Event{
		Kind:    event.KindStorage,
		Storage: &event.StorageWrite{Domain: "site.com", Scope: event.ScopeCookie, Key: "_ga"},
	}
	if d := en.Evaluate(e); d.Action != rules.ActionBlock {
		t.Errorf("priority 1 must win over the catch-all, got %s", d.Action)
	}

	other := &event.Event{
		Kind:    event.KindStorage,
		Storage: &event.StorageWrite{Domain: "site.com", Scope: event.ScopeCookie, Key: "session_id"},
	}
	if d := en.Evaluate(other); d.Action != rules.ActionLog {
		t.Errorf("catch-all must apply when nothing earlier matched, got %s", d.Action)
	}
}

func TestEvaluate_RuleBeatsFingerprint(t *testing.T) {
	en := newTestEngine(t,
		rules.Rule{Category: rules.CategoryScript, Pattern: `toDataURL`, Action: rules.ActionModify, Priority: 1},
	)

	e := &event.Event{
		Kind:      event.KindScript,
		Timestamp: time.Now(),
		Script:    &event.ScriptCall{ScriptURL: "https://cdn.example/fp.js", API: "canvas.toDataURL"},
	}
	d := en.Evaluate(e)
	if d.Action != rules.ActionModify || d.Reason != ReasonScript {
		t.Errorf("expected the rule decision, got %s/%s", d.Action, d.Reason)
	}
	if d.FingerprintKind != "" {
		t.Error("rule decisions must not carry a fingerprint kind")
	}
}

func TestEvaluate_FingerprintFallback(t *testing.T) {
	en := newTestEngine(t)

	e := &event.Event{
		Kind:      event.KindScript,
		Timestamp: time.Now(),
		Script:    &event.ScriptCall{ScriptURL: "https://cdn.example/fp.js", API: "canvas.toDataURL"},
	}
	d := en.Evaluate(e)
	if d.Action != rules.ActionBlock {
		t.Errorf("expected forced block, got %s", d.Action)
	}
	if d.Reason != ReasonFingerprint {
		t.Errorf("expected fingerprint reason, got %s", d.Reason)
	}
	if d.Matched() {
		t.Error("heuristic block must not claim a rule")
	}
}

func TestEvaluate_NilEvent(t *testing.T) {
	en := newTestEngine(t)

	if d := en.Evaluate(nil); d.Action != rules.ActionAllow {
		t.Errorf("nil event must allow, got %s", d.Action)
	}
}

func TestStatsSnapshot(t *testing.T) {
	en := newTestEngine(t,
		rules.Rule{Category: rules.CategoryURL, Pattern: `tracker`, Action: rules.ActionBlock, Priority: 1},
	)

	en.Evaluate(requestEvent("https://tracker.example/a"))
	en.Evaluate(requestEvent("https://site.com/ok"))

	snap := en.StatsSnapshot()
	if snap.Total != 2 {
		t.Errorf("expected 2 total, got %d", snap.Total)
	}
	if snap.Matched != 1 {
		t.Errorf("expected 1 matched, got %d", snap.Matched)
	}
	if snap.ByAction[rules.ActionBlock] != 1 || snap.ByAction[rules.ActionAllow] != 1 {
		t.Errorf("unexpected action counts: %v", snap.ByAction)
	}

	snap.ByAction[rules.ActionBlock] = 99
	if en.StatsSnapshot().ByAction[rules.ActionBlock] != 1 {
		t.Error("snapshot must be a copy")
	}
}
