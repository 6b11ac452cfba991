package event

import (
	"time"
)

// Event is one decoded command from the live event stream.
//
// Cmd is the command type string from the payload's "cmd" field. Data holds
// the full decoded payload. Raw is the original JSON bytes the payload was
// decoded from; it is kept so dedup fingerprinting can fall back to the
// exact wire form without re-marshalling.
//
// Events are immutable once decoded and are shared read-only between the
// ring buffer and every listener queue.
type Event struct {
	Cmd  string
	Data map[string]any
	Raw  []byte
}

// Envelope wraps an Event with its per-room delivery metadata.
type Envelope struct {
	// Index is a per-room monotonically increasing sequence number,
	// used as a replay cursor when subscribing.
	Index uint64

	// Timestamp is the wall-clock receipt time, used for dedup-window
	// and retention decisions.
	Timestamp time.Time

	Event Event
}
