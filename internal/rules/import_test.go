package rules

import (
	"errors"
	"testing"
)

const validDoc = `
rules:
  - type: url
    pattern: "(analytics|beacon)"
    action: block
    description: tracking endpoints
    priority: 1
  - type: cookie
    pattern: "_ga"
    action: block
    priority: 1
`

func TestImport_AppliesDocument(t *testing.T) {
	s := newTestStore(t)

	n, err := s.Import([]byte(validDoc))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 imported rules, got %d", n)
	}
	if got := len(s.ListEnabled(CategoryURL)); got != 1 {
		t.Errorf("expected 1 url rule, got %d", got)
	}
	if got := len(s.ListEnabled(CategoryCookie)); got != 1 {
		t.Errorf("expected 1 cookie rule, got %d", got)
	}
}

func TestImport_ReimportReplacesPriorImport(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 2; i++ {
		if _, err := s.Import([]byte(validDoc)); err != nil {
			t.Fatalf("import %d: %v", i+1, err)
		}
	}

	if got := len(s.ListEnabled(CategoryURL)); got != 1 {
		t.Errorf("expected 1 effective url rule after re-import, got %d", got)
	}
	if got := len(s.ListEnabled(CategoryCookie)); got != 1 {
		t.Errorf("expected 1 effective cookie rule after re-import, got %d", got)
	}

	all, err := s.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("superseded rows stay in the store, disabled: expected 4 rows, got %d", len(all))
	}
	enabled := 0
	for _, r := range all {
		if r.Enabled {
			enabled++
		}
	}
	if enabled != 2 {
		t.Errorf("expected 2 enabled rules after re-import, got %d", enabled)
	}
}

func TestImport_ManualRulesSurviveReimport(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Add(Rule{Category: CategoryURL, Pattern: "handwritten", Action: ActionBlock, Priority: 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Import([]byte(validDoc)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Import([]byte(validDoc)); err != nil {
		t.Fatal(err)
	}

	found := false
	for _, r := range s.ListEnabled(CategoryURL) {
		if r.ID == id {
			found = true
		}
	}
	if !found {
		t.Error("manually added rule must survive document re-imports")
	}
}

func TestImport_MissingFieldRejectsWholeDocument(t *testing.T) {
	s := newTestStore(t)

	doc := `
rules:
  - type: url
    pattern: "ok"
    action: block
  - type: cookie
    action: block
`
	_, err := s.Import([]byte(doc))
	var me *MalformedRuleError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedRuleError, got %v", err)
	}
	if me.Index != 1 {
		t.Errorf("expected offending index 1, got %d", me.Index)
	}
	if got := len(s.ListEnabled(CategoryURL)); got != 0 {
		t.Errorf("rejected import must store nothing, got %d rules", got)
	}
}

func TestImport_InvalidYAML(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Import([]byte("rules: [not: {closed"))
	var me *MalformedRuleError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedRuleError for bad YAML, got %v", err)
	}
}

func TestImport_EmptyDocument(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Import([]byte("rules: []"))
	var me *MalformedRuleError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedRuleError for empty document, got %v", err)
	}
}

func TestSeedDefaults(t *testing.T) {
	s := newTestStore(t)

	if err := s.SeedDefaults(); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	all, err := s.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(DefaultRules()) {
		t.Errorf("expected %d seeded rules, got %d", len(DefaultRules()), len(all))
	}
	for _, c := range Categories {
		if len(s.ListEnabled(c)) == 0 {
			t.Errorf("expected a default rule for category %s", c)
		}
	}

	// Reseeding replaces the previous seed rather than duplicating it.
	if err := s.SeedDefaults(); err != nil {
		t.Fatal(err)
	}
	enabled := 0
	for _, c := range Categories {
		enabled += len(s.ListEnabled(c))
	}
	if enabled != len(DefaultRules()) {
		t.Errorf("expected %d effective rules after reseed, got %d", len(DefaultRules()), enabled)
	}
}
