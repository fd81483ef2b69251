// Package sensor turns polled door readings into edge events.
//
// Reader keeps the previous raw reading per channel and reports a change as
// an Opened or Closed edge. It applies no dwell-time filter: a single noisy
// read produces an edge, which is the polling behaviour the alarm expects.
package sensor

import (
	"sync"

	"github.com/tankwatch/tank-guard/internal/domain/door"
)

// Edge is a transition of a door sensor between two ticks.
type Edge int

const (
	// EdgeNone means the reading did not change.
	EdgeNone Edge = iota
	// EdgeOpened means the door went from closed to open.
	EdgeOpened
	// EdgeClosed means the door went from open to closed.
	EdgeClosed
)

// String returns the edge name for logs.
func (e Edge) String() string {
	switch e {
	case EdgeOpened:
		return "OPENED"
	case EdgeClosed:
		return "CLOSED"
	default:
		return "NONE"
	}
}

// reading is the last raw value seen for one channel.
type reading struct {
	closed    bool
	baselined bool
}

// Reader detects edges per channel. It is safe for concurrent use.
type Reader struct {
	mu   sync.Mutex
	last [door.ChannelCount]reading
}

// NewReader creates a reader with no baseline.
func NewReader() *Reader {
	return new(Reader)
}

// Observe records the raw reading and returns the edge relative to the previous
// one. The first observation of a channel sets the baseline and returns EdgeNone.
func (r *Reader) Observe(id door.ChannelID, closed bool) Edge {
	if id.Validate() != nil {
		return EdgeNone
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := &r.last[id.Index()]

	if !prev.baselined {
		prev.closed = closed
		prev.baselined = true

		return EdgeNone
	}

	if prev.closed == closed {
		return EdgeNone
	}

	prev.closed = closed

	if closed {
		return EdgeClosed
	}

	return EdgeOpened
}

// Last returns the previous raw reading and whether a baseline exists.
func (r *Reader) Last(id door.ChannelID) (closed, ok bool) {
	if id.Validate() != nil {
		return false, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.last[id.Index()]

	return prev.closed, prev.baselined
}
