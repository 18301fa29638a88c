package rules

import (
	"fmt"
	"time"
)

// Category scopes a rule to one kind of observed activity. Categories are a
// closed set; a rule never inspects event fields outside its category.
type Category string

const (
	CategoryURL     Category = "url"
	CategoryCookie  Category = "cookie"
	CategoryStorage Category = "storage"
	CategoryScript  Category = "script"
)

// Categories lists every valid category in evaluation-dispatch order.
var Categories = []Category{CategoryURL, CategoryCookie, CategoryStorage, CategoryScript}

// Action is what the engine does when a rule matches.
type Action string

const (
	ActionBlock  Action = "block"
	ActionModify Action = "modify"
	ActionLog    Action = "log"

	// ActionAllow is never attached to a rule; it is the decision when
	// nothing matched.
	ActionAllow Action = "allow"
)

// Rule is a single detection/blocking rule. Rules are immutable once
// created; "updating" a rule means disabling it and inserting a new one.
// Within a category, rules evaluate in ascending Priority order and the
// first match wins.
type Rule struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Pattern     string   `json:"pattern"`
	Action      Action   `json:"action"`
	Description string   `json:"description,omitempty"`
	Priority    int      `json:"priority"`
	Enabled     bool     `json:"enabled"`

	CreatedAt time.Time `json:"created_at,omitempty"`

	// seq is the insertion order, used to break priority ties stably.
	seq int64
}

// ValidationError rejects a single bad rule definition at add time, so that
// evaluation never has to deal with an uncompilable pattern.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid rule %s %q: %s", e.Field, e.Value, e.Reason)
}

// MalformedRuleError rejects an entire bulk-import document. Imports are
// atomic: one bad entry and nothing is imported.
type MalformedRuleError struct {
	Index  int
	Reason string
}

func (e *MalformedRuleError) Error() string {
	return fmt.Sprintf("malformed rule document: entry %d: %s", e.Index, e.Reason)
}

func validCategory(c Category) bool {
	switch c {
	case CategoryURL, CategoryCookie, CategoryStorage, CategoryScript:
		return true
	}
	return false
}

func validAction(a Action) bool {
	switch a {
	case ActionBlock, ActionModify, ActionLog:
		return true
	}
	return false
}
