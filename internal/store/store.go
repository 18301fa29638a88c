package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// RuleRow is the persisted form of a detection rule. Seq preserves insertion
// order for stable priority tie-breaks.
type RuleRow struct {
	Seq         int64     `gorm:"primaryKey;autoIncrement"`
	RuleID      string    `gorm:"uniqueIndex;size:64"`
	Category    string    `gorm:"index;size:16"`
	Pattern     string
	Action      string `gorm:"size:16"`
	Description string
	Priority    int
	Enabled     bool
	Source      string `gorm:"index;size:16"`
	CreatedAt   time.Time
}

// LogRecord is one appended decision record. The log is append-only: records
// are never updated or deleted, only queried.
type LogRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp   time.Time `gorm:"index"`
	Action      string    `gorm:"size:16"`
	Reason      string    `gorm:"size:16"`
	RuleID      string    `gorm:"size:64"`
	Fingerprint string    `gorm:"size:16"`
	RequestType string    `gorm:"index;size:24"`
	URL         string
	Origin      string `gorm:"index"`
	Domain      string `gorm:"index"`
	ThirdParty  bool
}

// Filter narrows a log query. Zero values mean "no constraint".
type Filter struct {
	RequestType    string
	Domain         string
	Since          time.Time
	Until          time.Time
	ThirdPartyOnly bool
}

// UnrecoverableError signals that the persistent log is unavailable.
// Ingestion must halt rather than continue with unlogged decisions.
type UnrecoverableError struct {
	Op  string
	Err error
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *UnrecoverableError) Unwrap() error { return e.Err }

// IsUnrecoverable reports whether err is a store failure that must halt
// ingestion.
func IsUnrecoverable(err error) bool {
	var ue *UnrecoverableError
	return errors.As(err, &ue)
}

// Store wraps the relational rules/log database. Appends are serialized by a
// single writer lock so concurrent sessions never interleave inconsistently;
// reads take point-in-time snapshots and need no lock for their analysis.
type Store struct {
	mu sync.Mutex
	db *gorm.DB
}

// Open opens (or creates) the sqlite database at dsn and migrates the schema.
// Use ":memory:" for an ephemeral store.
func Open(dsn string, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("opening store %q: %w", dsn, err)
	}
	if err := db.AutoMigrate(&RuleRow{}, &LogRecord{}); err != nil {
		return nil, fmt.Errorf("migrating store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// InsertRule persists a new rule row.
func (s *Store) InsertRule(row *RuleRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := s.db.Create(row).Error; err != nil {
		return &UnrecoverableError{Op: "insert rule", Err: err}
	}
	return nil
}

// InsertRules persists a batch of rules in one transaction. Either every row
// lands or none do.
func (s *Store) InsertRules(rows []*RuleRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if row.CreatedAt.IsZero() {
				row.CreatedAt = time.Now().UTC()
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &UnrecoverableError{Op: "insert rules", Err: err}
	}
	return nil
}

// ReplaceRules atomically supersedes the previous batch from the same
// source: rules still enabled under that source are disabled and the new
// rows inserted in one transaction, so re-applying a document never
// accumulates duplicates.
func (s *Store) ReplaceRules(source string, rows []*RuleRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&RuleRow{}).
			Where("source = ? AND enabled = ?", source, true).
			Update("enabled", false).Error
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.CreatedAt.IsZero() {
				row.CreatedAt = time.Now().UTC()
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &UnrecoverableError{Op: "replace rules", Err: err}
	}
	return nil
}

// ListRules returns all rule rows in insertion order. When enabledOnly is
// set, disabled rules are excluded.
func (s *Store) ListRules(enabledOnly bool) ([]RuleRow, error) {
	var rows []RuleRow
	q := s.db.Order("seq asc")
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, &UnrecoverableError{Op: "list rules", Err: err}
	}
	return rows, nil
}

// DisableRule marks a rule disabled. Disabling an already-disabled or
// unknown rule is a no-op.
func (s *Store) DisableRule(ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Model(&RuleRow{}).
		Where("rule_id = ?", ruleID).
		Update("enabled", false).Error
	if err != nil {
		return &UnrecoverableError{Op: "disable rule", Err: err}
	}
	return nil
}

// AppendLog appends one decision record.
func (s *Store) AppendLog(rec *LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if err := s.db.Create(rec).Error; err != nil {
		return &UnrecoverableError{Op: "append log", Err: err}
	}
	return nil
}

// QueryLogs returns log records matching the filter, oldest first.
func (s *Store) QueryLogs(f Filter) ([]LogRecord, error) {
	q := s.db.Order("id asc")
	if f.RequestType != "" {
		q = q.Where("request_type = ?", f.RequestType)
	}
	if f.Domain != "" {
		q = q.Where("domain = ?", f.Domain)
	}
	if !f.Since.IsZero() {
		q = q.Where("timestamp >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("timestamp < ?", f.Until)
	}
	if f.ThirdPartyOnly {
		q = q.Where("third_party = ?", true)
	}
	var recs []LogRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, &UnrecoverableError{Op: "query logs", Err: err}
	}
	return recs, nil
}

// CountLogsByAction folds the log into per-action counts.
func (s *Store) CountLogsByAction() (map[string]int64, error) {
	type row struct {
		Action string
		N      int64
	}
	var rows []row
	err := s.db.Model(&LogRecord{}).
		Select("action, count(*) as n").
		Group("action").
		Scan(&rows).Error
	if err != nil {
		return nil, &UnrecoverableError{Op: "count logs", Err: err}
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Action] = r.N
	}
	return out, nil
}
