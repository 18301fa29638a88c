package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/hadichaudhri/trackerscope/internal/event"
)

// maxLineBytes bounds a single JSONL line; response bodies can be large.
const maxLineBytes = 4 << 20

// Handler consumes one decoded event. Returning an error stops the read.
type Handler func(*event.Event) error

// Reader consumes a JSON-lines event stream. Lines that are not valid
// JSON, or valid JSON without a recognizable event kind, are skipped with
// a warning; a corrupt capture never aborts the run.
type Reader struct {
	log zerolog.Logger

	// Lines and Skipped count stream totals after Read returns.
	Lines   int
	Skipped int
}

// NewReader creates a stream reader.
func NewReader(log zerolog.Logger) *Reader {
	return &Reader{log: log}
}

// ReadFile streams events from path, or from stdin when path is "-".
func (r *Reader) ReadFile(path string, fn Handler) error {
	if path == "-" {
		return r.Read(os.Stdin, fn)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening event stream: %w", err)
	}
	defer f.Close()
	return r.Read(f, fn)
}

// Read streams events from src until EOF or until the handler fails. The
// handler error is returned as-is so callers can distinguish a store halt
// from a stream problem.
func (r *Reader) Read(src io.Reader, fn Handler) error {
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		r.Lines++

		e, ok := r.decode(line)
		if !ok {
			r.Skipped++
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return nil
}

// decode parses one line. gjson validates and pre-screens the line cheaply
// before the full unmarshal, so garbage lines never reach json.Unmarshal.
func (r *Reader) decode(line string) (*event.Event, bool) {
	if !gjson.Valid(line) {
		r.log.Warn().Str("line", truncate(line)).Msg("skipping malformed event line")
		return nil, false
	}
	kind := gjson.Get(line, "kind").String()
	switch event.Kind(kind) {
	case event.KindRequest, event.KindResponse, event.KindStorage, event.KindScript:
	default:
		r.log.Warn().Str("kind", kind).Msg("skipping event with unknown kind")
		return nil, false
	}

	var e event.Event
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		r.log.Warn().Err(err).Msg("skipping undecodable event line")
		return nil, false
	}
	if !payloadMatches(&e) {
		r.log.Warn().Str("kind", kind).Msg("skipping event with missing payload")
		return nil, false
	}
	return &e, true
}

// payloadMatches checks the union invariant: the payload arm named by Kind
// must be present.
func payloadMatches(e *event.Event) bool {
	switch e.Kind {
	case event.KindRequest:
		return e.Request != nil
	case event.KindResponse:
		return e.Response != nil
	case event.KindStorage:
		return e.Storage != nil
	case event.KindScript:
		return e.Script != nil
	}
	return false
}

func truncate(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
