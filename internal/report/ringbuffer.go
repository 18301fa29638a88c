package report

import (
	"sync"

	"github.com/hadichaudhri/trackerscope/internal/pipeline"
)

const defaultBufferSize = 1000

// RingBuffer is a thread-safe circular buffer of recent decisions, for
// consumers that want a bounded tail of the stream.
type RingBuffer struct {
	mu    sync.RWMutex
	items []pipeline.DecisionEvent
	head  int
	count int
	cap   int
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = defaultBufferSize
	}
	return &RingBuffer{
		items: make([]pipeline.DecisionEvent, capacity),
		cap:   capacity,
	}
}

// Add inserts a decision into the buffer, overwriting the oldest if full.
func (rb *RingBuffer) Add(de pipeline.DecisionEvent) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	idx := (rb.head + rb.count) % rb.cap
	if rb.count == rb.cap {
		rb.items[rb.head] = de
		rb.head = (rb.head + 1) % rb.cap
	} else {
		rb.items[idx] = de
		rb.count++
	}
}

// All returns buffered decisions in chronological order, oldest first.
func (rb *RingBuffer) All() []pipeline.DecisionEvent {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	result := make([]pipeline.DecisionEvent, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.items[(rb.head+i)%rb.cap]
	}
	return result
}

// Len returns the number of buffered decisions.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}
