package rules

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hadichaudhri/trackerscope/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("creating rule store: %v", err)
	}
	return s
}

func TestAdd_AssignsID(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Add(Rule{Category: CategoryURL, Pattern: "tracker", Action: ActionBlock})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Error("expected a generated rule ID")
	}

	enabled := s.ListEnabled(CategoryURL)
	if len(enabled) != 1 {
		t.Fatalf("expected 1 enabled rule, got %d", len(enabled))
	}
	if enabled[0].ID != id {
		t.Errorf("expected rule %s in index, got %s", id, enabled[0].ID)
	}
}

func TestAdd_RejectsInvalidRules(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name string
		rule Rule
	}{
		{"unknown_category", Rule{Category: "dns", Pattern: "x", Action: ActionBlock}},
		{"unknown_action", Rule{Category: CategoryURL, Pattern: "x", Action: "redirect"}},
		{"allow_action", Rule{Category: CategoryURL, Pattern: "x", Action: ActionAllow}},
		{"empty_pattern", Rule{Category: CategoryURL, Pattern: "", Action: ActionBlock}},
		{"bad_regexp", Rule{Category: CategoryURL, Pattern: "[unclosed", Action: ActionBlock}},
	}

	for _, tc := range tests {
		_, err := s.Add(tc.rule)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}

	if got := len(s.ListEnabled(CategoryURL)); got != 0 {
		t.Errorf("expected no rules stored after rejections, got %d", got)
	}
}

func TestListEnabled_PriorityOrder(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Add(Rule{Category: CategoryURL, Pattern: "late", Action: ActionBlock, Priority: 10}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(Rule{Category: CategoryURL, Pattern: "early", Action: ActionLog, Priority: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(Rule{Category: CategoryURL, Pattern: "middle", Action: ActionBlock, Priority: 5}); err != nil {
		t.Fatal(err)
	}

	got := s.ListEnabled(CategoryURL)
	want := []string{"early", "middle", "late"}
	if len(got) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(got))
	}
	for i, pattern := range want {
		if got[i].Pattern != pattern {
			t.Errorf("position %d: expected %q, got %q", i, pattern, got[i].Pattern)
		}
	}
}

func TestListEnabled_InsertionOrderBreaksTies(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Add(Rule{Category: CategoryCookie, Pattern: "_ga", Action: ActionBlock, Priority: 5})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Add(Rule{Category: CategoryCookie, Pattern: "_gid", Action: ActionLog, Priority: 5})
	if err != nil {
		t.Fatal(err)
	}

	got := s.ListEnabled(CategoryCookie)
	if len(got) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(got))
	}
	if got[0].ID != first || got[1].ID != second {
		t.Errorf("equal priorities must keep insertion order: got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestDisable_RemovesFromIndex(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Add(Rule{Category: CategoryStorage, Pattern: "fp", Action: ActionBlock})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Disable(id); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if got := len(s.ListEnabled(CategoryStorage)); got != 0 {
		t.Errorf("expected disabled rule out of index, got %d enabled", got)
	}

	// Idempotent, including for unknown IDs.
	if err := s.Disable(id); err != nil {
		t.Errorf("second Disable: %v", err)
	}
	if err := s.Disable("no-such-rule"); err != nil {
		t.Errorf("Disable unknown: %v", err)
	}

	all, err := s.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Enabled {
		t.Error("disabled rule should remain listed, marked disabled")
	}
}

func TestAddAll_Atomic(t *testing.T) {
	s := newTestStore(t)

	batch := []Rule{
		{Category: CategoryURL, Pattern: "ok", Action: ActionBlock},
		{Category: CategoryURL, Pattern: "[broken", Action: ActionBlock},
		{Category: CategoryURL, Pattern: "also-ok", Action: ActionBlock},
	}

	err := s.AddAll(batch)
	var me *MalformedRuleError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedRuleError, got %v", err)
	}
	if me.Index != 1 {
		t.Errorf("expected offending index 1, got %d", me.Index)
	}
	if got := len(s.ListEnabled(CategoryURL)); got != 0 {
		t.Errorf("failed import must store nothing, got %d rules", got)
	}
}

func TestListEnabled_ReturnsCopy(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Add(Rule{Category: CategoryURL, Pattern: "x", Action: ActionBlock}); err != nil {
		t.Fatal(err)
	}
	first := s.ListEnabled(CategoryURL)
	first[0].Pattern = "mutated"

	if got := s.ListEnabled(CategoryURL)[0].Pattern; got != "x" {
		t.Errorf("index leaked through returned slice: %q", got)
	}
}
