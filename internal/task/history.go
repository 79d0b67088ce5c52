package task

import (
	"sync"
	"time"

	"roo-task/internal/protocol"
)

const historySize = 32

// Seen is one task event as received by the correlator.
type Seen struct {
	At        time.Time
	EventName string
	TaskID    string // first string argument, when there is one
}

// History keeps the most recent events in a fixed-capacity ring.
type History struct {
	mu       sync.Mutex
	buf      []Seen
	capacity int
	pos      int // next write position
	full     bool
}

// NewHistory creates a history holding up to capacity events.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = historySize
	}
	return &History{
		buf:      make([]Seen, capacity),
		capacity: capacity,
	}
}

// Record adds ev, evicting the oldest entry when full.
func (h *History) Record(ev protocol.TaskEvent) {
	s := Seen{At: time.Now().UTC(), EventName: ev.EventName}
	if id, ok := ev.StringArg(0); ok {
		s.TaskID = id
	} else if m, ok := ev.MessageArg(0); ok {
		s.TaskID = m.TaskID
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.pos] = s
	h.pos = (h.pos + 1) % h.capacity
	if h.pos == 0 {
		h.full = true
	}
}

// Events returns the recorded events, oldest first.
func (h *History) Events() []Seen {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		out := make([]Seen, h.pos)
		copy(out, h.buf[:h.pos])
		return out
	}
	out := make([]Seen, h.capacity)
	copy(out, h.buf[h.pos:])
	copy(out[h.capacity-h.pos:], h.buf[:h.pos])
	return out
}
