package room

import (
	"sync"

	"github.com/c-basalt/yumi-feed/internal/event"
)

// ring is a fixed-capacity FIFO of Envelopes. Once full, appending evicts
// the oldest entry. It backs listener replay: a subscriber picks up every
// buffered envelope newer than its cursor, bounded by retention.
type ring struct {
	mu       sync.Mutex
	buf      []event.Envelope
	head     int // read position
	count    int
	capacity int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{
		buf:      make([]event.Envelope, capacity),
		capacity: capacity,
	}
}

// append adds an envelope, evicting the oldest when full.
func (r *ring) append(env event.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tail := (r.head + r.count) % r.capacity
	r.buf[tail] = env
	if r.count < r.capacity {
		r.count++
	} else {
		r.head = (r.head + 1) % r.capacity
	}
}

// after returns buffered envelopes with Index > cursor, oldest first.
func (r *ring) after(cursor uint64) []event.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []event.Envelope
	for i := 0; i < r.count; i++ {
		env := r.buf[(r.head+i)%r.capacity]
		if env.Index > cursor {
			out = append(out, env)
		}
	}
	return out
}

func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
