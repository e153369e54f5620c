package pipeline

import (
	"sync"
	"time"
)

// CycleRecord is the outcome of one finished or superseded cycle
type CycleRecord struct {
	CycleID  string        `json:"cycleId"`
	Outcome  string        `json:"outcome"`
	Source   string        `json:"source,omitempty"`
	Finished time.Time     `json:"finished"`
	Elapsed  time.Duration `json:"elapsed"`
}

// History is a thread-safe circular buffer of cycle records. It may be
// shared by successive pipelines.
type History struct {
	mu     sync.RWMutex
	buffer []CycleRecord
	size   int
	head   int
	count  int
}

// NewHistory creates a history with the specified capacity
func NewHistory(size int) *History {
	if size <= 0 {
		size = 100 // Default
	}
	return &History{
		buffer: make([]CycleRecord, size),
		size:   size,
	}
}

// Push adds a record to the history
func (h *History) Push(rec CycleRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buffer[h.head] = rec
	h.head = (h.head + 1) % h.size
	if h.count < h.size {
		h.count++
	}
}

// All returns all records in order (oldest first)
func (h *History) All() []CycleRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.allLocked()
}

func (h *History) allLocked() []CycleRecord {
	result := make([]CycleRecord, h.count)

	if h.count < h.size {
		// Buffer not full, start from 0
		copy(result, h.buffer[:h.count])
	} else {
		// Buffer full, start from head (oldest)
		copy(result, h.buffer[h.head:])
		copy(result[h.size-h.head:], h.buffer[:h.head])
	}
	return result
}

// Last returns the last n records (most recent last)
func (h *History) Last(n int) []CycleRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > h.count {
		n = h.count
	}

	result := make([]CycleRecord, n)
	start := (h.head - n + h.size) % h.size
	for i := 0; i < n; i++ {
		result[i] = h.buffer[(start+i)%h.size]
	}
	return result
}

// Count returns the number of records held
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// CountByOutcome returns counts grouped by outcome
func (h *History) CountByOutcome() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[string]int)
	for _, r := range h.allLocked() {
		counts[r.Outcome]++
	}
	return counts
}
