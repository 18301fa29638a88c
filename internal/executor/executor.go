package executor

import (
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/hadichaudhri/trackerscope/internal/engine"
	"github.com/hadichaudhri/trackerscope/internal/event"
	"github.com/hadichaudhri/trackerscope/internal/rules"
	"github.com/hadichaudhri/trackerscope/internal/store"
)

// trackingParams is the fixed deny-list of query parameters stripped by
// modify actions.
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "fbclid", "gclid", "_ga", "ref",
}

// scriptSubstitutions replaces known fingerprinting call sites with inert
// stand-ins when a modify action rewrites a script body.
var scriptSubstitutions = map[string]string{
	"canvas.toDataURL":    `function() { return ""; }`,
	"navigator.userAgent": `"Mozilla/5.0"`,
	"navigator.plugins":   `[]`,
	"navigator.vendorSub": `""`,
}

// EffectiveEvent is what remains of an event after its decision was applied.
// Suppressed means the event's payload never proceeds (a vetoed request, an
// emptied response body, a dropped storage write).
type EffectiveEvent struct {
	Event      *event.Event
	Suppressed bool
}

// Executor applies decisions and appends the immutable decision log. Side
// effects are applied before the log append, so a record always reflects
// the action actually taken.
type Executor struct {
	db *store.Store
}

// New creates an executor appending to the given store.
func New(db *store.Store) *Executor {
	return &Executor{db: db}
}

// Apply carries out the decision's side effect and appends exactly one log
// record — except for allow decisions that matched no rule, which pass
// through unlogged to bound log volume. A store failure surfaces as an
// UnrecoverableError; the caller must halt ingestion rather than continue
// with unlogged actions.
func (x *Executor) Apply(e *event.Event, d engine.Decision) (EffectiveEvent, error) {
	eff := EffectiveEvent{Event: e}

	switch d.Action {
	case rules.ActionBlock:
		eff = x.block(e)
	case rules.ActionModify:
		eff = x.modify(e)
	}

	if d.Action == rules.ActionAllow && !d.Matched() {
		return eff, nil
	}

	rec := &store.LogRecord{
		Timestamp:   e.Timestamp,
		Action:      string(d.Action),
		Reason:      string(d.Reason),
		RuleID:      d.RuleID,
		Fingerprint: string(d.FingerprintKind),
		RequestType: string(e.Kind),
		URL:         e.URL(),
		Origin:      e.Origin,
		Domain:      e.TargetDomain(),
		ThirdParty:  e.IsThirdParty,
	}
	if err := x.db.AppendLog(rec); err != nil {
		return eff, err
	}
	return eff, nil
}

// block suppresses the event's payload. Responses keep their envelope with
// an empty body; requests and storage writes are vetoed outright.
func (x *Executor) block(e *event.Event) EffectiveEvent {
	if e.Kind == event.KindResponse && e.Response != nil {
		clone := *e
		resp := *e.Response
		resp.Body = ""
		clone.Response = &resp
		return EffectiveEvent{Event: &clone, Suppressed: true}
	}
	return EffectiveEvent{Event: e, Suppressed: true}
}

// modify applies the category-specific rewrite and passes the event on.
func (x *Executor) modify(e *event.Event) EffectiveEvent {
	clone := *e
	switch e.Kind {
	case event.KindRequest:
		if e.Request != nil {
			req := *e.Request
			req.URL = StripTrackingParams(req.URL)
			req.Body = scrubJSONBody(req.Body)
			clone.Request = &req
		}
	case event.KindResponse:
		if e.Response != nil {
			resp := *e.Response
			resp.URL = StripTrackingParams(resp.URL)
			resp.Body = NeutralizeScript(resp.Body)
			clone.Response = &resp
		}
	}
	return EffectiveEvent{Event: &clone}
}

// StripTrackingParams removes deny-listed query parameters from a URL. A URL
// that cannot be parsed comes back unchanged.
func StripTrackingParams(rawURL string) string {
	if rawURL == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for _, p := range trackingParams {
		if q.Has(p) {
			q.Del(p)
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NeutralizeScript textually replaces known fingerprinting call sites with
// inert stand-ins.
func NeutralizeScript(body string) string {
	for old, repl := range scriptSubstitutions {
		body = strings.ReplaceAll(body, old, repl)
	}
	return body
}

// scrubJSONBody deletes deny-listed tracking keys from a JSON request body.
// Non-JSON bodies pass through untouched.
func scrubJSONBody(body string) string {
	if body == "" || !gjson.Valid(body) {
		return body
	}
	for _, p := range trackingParams {
		if gjson.Get(body, p).Exists() {
			if out, err := sjson.Delete(body, p); err == nil {
				body = out
			}
		}
	}
	return body
}
