package rules

import (
	"regexp"
	"strings"
	"sync"

	"github.com/hadichaudhri/trackerscope/internal/event"
)

// regexCache compiles each pattern once. Patterns are validated at Add time,
// so cache misses that fail to compile only happen for rules that bypassed
// the store; those simply never match.
type regexCache struct {
	mu sync.RWMutex
	m  map[string]*regexp.Regexp
}

var patterns = &regexCache{m: make(map[string]*regexp.Regexp)}

func (c *regexCache) get(pattern string) *regexp.Regexp {
	c.mu.RLock()
	re := c.m[pattern]
	c.mu.RUnlock()
	if re != nil {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	c.mu.Lock()
	c.m[pattern] = re
	c.mu.Unlock()
	return re
}

// Matches reports whether the rule's pattern matches the event fields its
// category covers. A rule never inspects fields outside its category, and
// malformed event data yields false rather than an error.
func Matches(r *Rule, e *event.Event) bool {
	if e == nil {
		return false
	}
	re := patterns.get(r.Pattern)
	if re == nil {
		return false
	}
	for _, field := range categoryFields(r.Category, e) {
		if field != "" && re.MatchString(field) {
			return true
		}
	}
	return false
}

// categoryFields selects the textual fields a category inspects on an event.
// An empty slice means the category does not apply to this event kind.
func categoryFields(c Category, e *event.Event) []string {
	switch c {
	case CategoryURL:
		if u := e.URL(); u != "" {
			return []string{u}
		}
	case CategoryCookie:
		if e.Kind == event.KindStorage && e.Storage != nil && e.Storage.Scope == event.ScopeCookie {
			return []string{e.Storage.Key}
		}
		if e.Kind == event.KindResponse && e.Response != nil {
			return setCookieValues(e.Response.Headers)
		}
	case CategoryStorage:
		if e.Kind == event.KindStorage && e.Storage != nil && e.Storage.Scope != event.ScopeCookie {
			return []string{e.Storage.Key}
		}
	case CategoryScript:
		if e.Kind == event.KindScript && e.Script != nil {
			return []string{e.Script.API + " " + strings.Join(e.Script.Args, " ")}
		}
		// Script rules also inspect response bodies, so tracking snippets
		// inside delivered scripts are caught before they execute.
		if e.Kind == event.KindResponse && e.Response != nil && e.Response.Body != "" {
			return []string{e.Response.Body}
		}
	}
	return nil
}

func setCookieValues(headers map[string]string) []string {
	var out []string
	for k, v := range headers {
		if strings.EqualFold(k, "set-cookie") {
			out = append(out, v)
		}
	}
	return out
}
