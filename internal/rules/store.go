package rules

import (
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hadichaudhri/trackerscope/internal/store"
)

// Rule provenance. Manually added rules are additive; document-backed
// batches (imports, the default seed) replace their previous batch so
// re-applying a document never accumulates duplicates.
const (
	sourceManual  = "manual"
	sourceImport  = "import"
	sourceDefault = "default"
)

// Store holds the persisted rule set together with an in-memory index
// ordered by category. Every mutation rebuilds the index synchronously
// before returning, so callers never observe a stale index.
type Store struct {
	db *store.Store

	mu    sync.RWMutex
	index map[Category][]Rule
}

// NewStore loads the rule set from the backing database and builds the
// evaluation index.
func NewStore(db *store.Store) (*Store, error) {
	s := &Store{db: db}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Add validates and persists a new rule, then rebuilds the index. The
// assigned rule ID is returned. A bad category, action, or pattern is
// rejected with a ValidationError and nothing is stored.
func (s *Store) Add(r Rule) (string, error) {
	if err := validateRule(&r); err != nil {
		return "", err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := s.db.InsertRule(toRow(&r, sourceManual)); err != nil {
		return "", err
	}
	return r.ID, s.Reload()
}

// AddAll persists a batch of rules atomically: every rule is validated
// first, and one bad entry rejects the whole batch with a
// MalformedRuleError.
func (s *Store) AddAll(batch []Rule) error {
	rows := make([]*store.RuleRow, 0, len(batch))
	for i := range batch {
		r := &batch[i]
		if err := validateRule(r); err != nil {
			return &MalformedRuleError{Index: i, Reason: err.Error()}
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		rows = append(rows, toRow(r, sourceManual))
	}
	if err := s.db.InsertRules(rows); err != nil {
		return err
	}
	return s.Reload()
}

// replaceBatch validates a document-backed batch and atomically swaps it in
// for the previous batch from the same source. Rules from other sources are
// untouched; the superseded rows stay in the store, disabled.
func (s *Store) replaceBatch(source string, batch []Rule) error {
	rows := make([]*store.RuleRow, 0, len(batch))
	for i := range batch {
		r := &batch[i]
		if err := validateRule(r); err != nil {
			return &MalformedRuleError{Index: i, Reason: err.Error()}
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		rows = append(rows, toRow(r, source))
	}
	if err := s.db.ReplaceRules(source, rows); err != nil {
		return err
	}
	return s.Reload()
}

// Disable marks a rule disabled and rebuilds the index. Idempotent.
func (s *Store) Disable(ruleID string) error {
	if err := s.db.DisableRule(ruleID); err != nil {
		return err
	}
	return s.Reload()
}

// ListEnabled returns the enabled rules for a category, sorted by ascending
// priority with insertion order breaking ties. The returned slice is a copy.
func (s *Store) ListEnabled(c Category) []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.index[c]
	out := make([]Rule, len(src))
	copy(out, src)
	return out
}

// ListAll returns every rule (enabled or not) in insertion order.
func (s *Store) ListAll() ([]Rule, error) {
	rows, err := s.db.ListRules(false)
	if err != nil {
		return nil, err
	}
	out := make([]Rule, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// Reload rebuilds the in-memory index from the database.
func (s *Store) Reload() error {
	rows, err := s.db.ListRules(true)
	if err != nil {
		return err
	}
	index := make(map[Category][]Rule, len(Categories))
	for _, row := range rows {
		r := fromRow(row)
		index[r.Category] = append(index[r.Category], r)
	}
	for c := range index {
		list := index[c]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority < list[j].Priority
		})
	}
	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	return nil
}

func toRow(r *Rule, source string) *store.RuleRow {
	return &store.RuleRow{
		RuleID:      r.ID,
		Category:    string(r.Category),
		Pattern:     r.Pattern,
		Action:      string(r.Action),
		Description: r.Description,
		Priority:    r.Priority,
		Enabled:     true,
		Source:      source,
	}
}

func fromRow(row store.RuleRow) Rule {
	return Rule{
		ID:          row.RuleID,
		Category:    Category(row.Category),
		Pattern:     row.Pattern,
		Action:      Action(row.Action),
		Description: row.Description,
		Priority:    row.Priority,
		Enabled:     row.Enabled,
		CreatedAt:   row.CreatedAt,
		seq:         row.Seq,
	}
}

func validateRule(r *Rule) error {
	if !validCategory(r.Category) {
		return &ValidationError{Field: "category", Value: string(r.Category), Reason: "unknown category"}
	}
	if !validAction(r.Action) {
		return &ValidationError{Field: "action", Value: string(r.Action), Reason: "unknown action"}
	}
	if r.Pattern == "" {
		return &ValidationError{Field: "pattern", Value: "", Reason: "pattern is required"}
	}
	if _, err := regexp.Compile(r.Pattern); err != nil {
		return &ValidationError{Field: "pattern", Value: r.Pattern, Reason: err.Error()}
	}
	return nil
}
