package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is one line of the decision stream: the realtime, human-greppable
// record of what the engine decided. The authoritative log records live in
// the relational store; this stream exists for tailing and downstream
// consumers.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Session    string    `json:"session,omitempty"`
	Kind       string    `json:"kind"`
	Action     string    `json:"action"`
	Reason     string    `json:"reason,omitempty"`
	RuleID     string    `json:"rule_id,omitempty"`
	Domain     string    `json:"domain,omitempty"`
	URL        string    `json:"url,omitempty"`
	Suppressed bool      `json:"suppressed,omitempty"`
}

// Logger writes JSON-line decision entries.
type Logger struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewLogger creates a decision logger writing to the given writer.
func NewLogger(w io.Writer) *Logger {
	return &Logger{enc: json.NewEncoder(w)}
}

// NewRotatingLogger writes to a size-rotated file at path, for monitor runs
// that outlive a single log file.
func NewRotatingLogger(path string) *Logger {
	return NewLogger(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
	})
}

// NewStderrLogger writes entries to stderr.
func NewStderrLogger() *Logger {
	return NewLogger(os.Stderr)
}

// NopLogger discards all entries.
func NopLogger() *Logger {
	return NewLogger(io.Discard)
}

// Log writes a single entry as one JSON line.
func (l *Logger) Log(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}
