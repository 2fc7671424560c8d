package watcher

import "sync"

// DefaultHistorySize is the capacity used when [NewHistory] receives a
// non-positive size.
const DefaultHistorySize = 100

// History is a thread-safe ring of the most recent [Event]s. When full, the
// oldest event is overwritten.
type History struct {
	events []Event
	head   int
	size   int
	mu     sync.RWMutex
}

// NewHistory creates a [History] holding up to capacity events.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}

	return &History{events: make([]Event, capacity)}
}

// Add records an event.
func (h *History) Add(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events[h.head] = e
	h.head = (h.head + 1) % len(h.events)

	if h.size < len(h.events) {
		h.size++
	}
}

// Len returns the number of stored events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.size
}

// Recent returns up to n events, newest first. A non-positive n returns all
// stored events.
func (h *History) Recent(n int) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > h.size {
		n = h.size
	}

	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.head - i + len(h.events)) % len(h.events)
		out = append(out, h.events[idx])
	}

	return out
}
