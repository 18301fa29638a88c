package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ImportEntry is one rule in an external rule document. The field names
// match the interchange format (`type` rather than `category`).
type ImportEntry struct {
	Type        string `yaml:"type" json:"type"`
	Pattern     string `yaml:"pattern" json:"pattern"`
	Action      string `yaml:"action" json:"action"`
	Description string `yaml:"description" json:"description"`
	Priority    int    `yaml:"priority" json:"priority"`
}

// ruleDocument is the top-level shape of a rules YAML file.
type ruleDocument struct {
	Rules []ImportEntry `yaml:"rules"`
}

// ImportFile bulk-imports rules from a YAML document. The import is atomic:
// if any entry is missing a required field or carries an invalid category,
// action, or pattern, nothing changes and a MalformedRuleError is returned.
// A successful import supersedes the previous one — the prior import's
// rules are disabled in the same transaction, so hot reloads and repeated
// imports leave exactly one effective copy of the document. Manually added
// rules are never touched.
func (s *Store) ImportFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading rule document: %w", err)
	}
	return s.Import(data)
}

// Import parses and atomically applies a YAML rule document.
func (s *Store) Import(data []byte) (int, error) {
	var doc ruleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, &MalformedRuleError{Index: 0, Reason: fmt.Sprintf("parsing YAML: %v", err)}
	}
	if len(doc.Rules) == 0 {
		return 0, &MalformedRuleError{Index: 0, Reason: "document contains no rules"}
	}
	batch := make([]Rule, 0, len(doc.Rules))
	for i, entry := range doc.Rules {
		if entry.Type == "" || entry.Pattern == "" || entry.Action == "" {
			return 0, &MalformedRuleError{Index: i, Reason: "type, pattern, and action are required"}
		}
		batch = append(batch, Rule{
			Category:    Category(entry.Type),
			Pattern:     entry.Pattern,
			Action:      Action(entry.Action),
			Description: entry.Description,
			Priority:    entry.Priority,
		})
	}
	if err := s.replaceBatch(sourceImport, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

// DefaultRules is the seed rule set: common tracking endpoints, analytics
// cookies, fingerprinting storage keys, and fingerprinting script APIs.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category:    CategoryURL,
			Pattern:     `(analytics|tracking|beacon|telemetry)`,
			Action:      ActionBlock,
			Description: "Block common tracking endpoints",
			Priority:    1,
		},
		{
			Category:    CategoryCookie,
			Pattern:     `(_ga|_gid|fbp|_fbp)`,
			Action:      ActionBlock,
			Description: "Block common tracking cookies",
			Priority:    1,
		},
		{
			Category:    CategoryStorage,
			Pattern:     `(fingerprint|canvas|device)`,
			Action:      ActionBlock,
			Description: "Block fingerprinting storage",
			Priority:    2,
		},
		{
			Category:    CategoryScript,
			Pattern:     `(navigator\.userAgent|canvas\.toDataURL)`,
			Action:      ActionModify,
			Description: "Neutralize fingerprinting scripts",
			Priority:    2,
		},
	}
}

// SeedDefaults installs the default rule set, superseding a previous seed.
func (s *Store) SeedDefaults() error {
	return s.replaceBatch(sourceDefault, DefaultRules())
}
