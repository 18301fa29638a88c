package event

import (
	"net/url"
	"strings"
	"time"
)

// Kind identifies which arm of the event union is populated.
type Kind string

const (
	KindRequest  Kind = "network_request"
	KindResponse Kind = "network_response"
	KindStorage  Kind = "storage_write"
	KindScript   Kind = "script_call"
)

// Scope identifies where a storage write landed.
type Scope string

const (
	ScopeLocal   Scope = "local"
	ScopeSession Scope = "session"
	ScopeCookie  Scope = "cookie"
)

// Event is a single observation extracted from a browsing session by the
// interception collaborator. Exactly one payload field is set, matching Kind.
// Events are immutable once produced; the engine only derives decisions
// from them.
type Event struct {
	Kind         Kind      `json:"kind"`
	Timestamp    time.Time `json:"timestamp"`
	Origin       string    `json:"origin"`
	IsThirdParty bool      `json:"is_third_party"`

	Request  *NetworkRequest  `json:"request,omitempty"`
	Response *NetworkResponse `json:"response,omitempty"`
	Storage  *StorageWrite    `json:"storage,omitempty"`
	Script   *ScriptCall      `json:"script,omitempty"`
}

// NetworkRequest is an outgoing request observed before it hit the network.
type NetworkRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// NetworkResponse is a completed response, body included.
type NetworkResponse struct {
	URL     string            `json:"url"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// StorageWrite is a write to cookies, localStorage or sessionStorage.
type StorageWrite struct {
	Domain string `json:"domain"`
	Scope  Scope  `json:"scope"`
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
}

// ScriptCall is a monitored script API invocation.
type ScriptCall struct {
	ScriptURL string   `json:"script_url"`
	API       string   `json:"api"`
	Args      []string `json:"args,omitempty"`
	Stack     string   `json:"stack,omitempty"`
}

// URL returns the request or response URL, or "" for other kinds.
func (e *Event) URL() string {
	switch {
	case e.Request != nil:
		return e.Request.URL
	case e.Response != nil:
		return e.Response.URL
	}
	return ""
}

// TargetDomain returns the domain the event acts on: the request target for
// network events, the storage domain for writes, the script host for calls.
func (e *Event) TargetDomain() string {
	switch e.Kind {
	case KindRequest, KindResponse:
		return Domain(e.URL())
	case KindStorage:
		if e.Storage != nil {
			return e.Storage.Domain
		}
	case KindScript:
		if e.Script != nil {
			return Domain(e.Script.ScriptURL)
		}
	}
	return ""
}

// Domain extracts the hostname from a raw URL, or "" if it cannot be parsed.
// Bare hostnames without a scheme are accepted.
func Domain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Host == "" && !strings.Contains(rawURL, "/") && strings.Contains(rawURL, ".") {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Hostname())
}
