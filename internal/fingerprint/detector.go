package fingerprint

import (
	"strings"
	"sync"
	"time"

	"github.com/hadichaudhri/trackerscope/internal/event"
)

const (
	// bundleWindow bounds how far apart property reads can be and still
	// count as one fingerprinting bundle.
	bundleWindow = time.Second

	// bundleThreshold is how many distinct high-entropy properties one
	// script must read within the window to be flagged.
	bundleThreshold = 3
)

type propertyRead struct {
	property string
	at       time.Time
}

// Detector classifies script API calls against the fixed fingerprinting
// catalog. Detection of combinatorial fingerprinting (several innocuous
// navigator/screen reads from one script in quick succession) keeps a small
// sliding window of recent reads per script URL, so the detector is stateful.
type Detector struct {
	mu     sync.Mutex
	recent map[string][]propertyRead
}

// NewDetector creates a detector with empty window state.
func NewDetector() *Detector {
	return &Detector{recent: make(map[string][]propertyRead)}
}

// Classify reports the fingerprinting kind of a script call event, if any.
// Non-script events never classify.
func (d *Detector) Classify(e *event.Event) (Kind, bool) {
	if e == nil || e.Kind != event.KindScript || e.Script == nil {
		return "", false
	}
	api := e.Script.API

	if kind, ok := apiSignatures[lastSegment(api)]; ok {
		return kind, true
	}

	if _, ok := entropyProperties[api]; ok {
		return d.recordRead(e.Script.ScriptURL, api, e.Timestamp)
	}
	return "", false
}

// recordRead appends a property read to the script's sliding window and
// checks whether the window now holds a fingerprinting bundle.
func (d *Detector) recordRead(scriptURL, property string, at time.Time) (Kind, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	window := d.recent[scriptURL]
	cutoff := at.Add(-bundleWindow)
	kept := window[:0]
	for _, r := range window {
		// Reads exactly bundleWindow apart still count together.
		if !r.at.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	kept = append(kept, propertyRead{property: property, at: at})
	d.recent[scriptURL] = kept

	distinct := make(map[string]struct{}, len(kept))
	for _, r := range kept {
		distinct[r.property] = struct{}{}
	}
	if len(distinct) >= bundleThreshold {
		return bundleKind(distinct), true
	}
	return "", false
}

// bundleKind reports the kind most of the bundled properties belong to.
// Ties go to KindNavigator.
func bundleKind(distinct map[string]struct{}) Kind {
	counts := make(map[Kind]int)
	for p := range distinct {
		counts[entropyProperties[p]]++
	}
	if counts[KindScreen] > counts[KindNavigator] {
		return KindScreen
	}
	return KindNavigator
}

// lastSegment strips a dotted receiver from an API name, so both
// "canvas.toDataURL" and "toDataURL" hit the catalog.
func lastSegment(api string) string {
	if i := strings.LastIndexByte(api, '.'); i >= 0 {
		return api[i+1:]
	}
	return api
}
