package room

import (
	"time"

	"github.com/google/uuid"

	"github.com/c-basalt/yumi-feed/internal/event"
)

// Subscription is one listener's bounded queue of envelopes. The producer
// offers non-blockingly and evicts the subscription when the queue is
// full, so a consumer that stops draining never stalls ingestion or the
// other listeners.
type Subscription struct {
	id uuid.UUID
	ch chan event.Envelope
}

func newSubscription(capacity int) *Subscription {
	return &Subscription{
		id: uuid.New(),
		ch: make(chan event.Envelope, capacity),
	}
}

// Receive waits up to timeout for the next envelope. The second return is
// false when nothing arrived in time or the subscription was closed; a
// timeout is a normal "no event yet" result, not an error.
func (s *Subscription) Receive(timeout time.Duration) (event.Envelope, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case env, ok := <-s.ch:
		if !ok {
			return event.Envelope{}, false
		}
		return env, true
	case <-timer.C:
		return event.Envelope{}, false
	}
}

// Chan exposes the queue for select-based consumers and merger pumps.
// The channel is closed when the subscription is evicted or unsubscribed.
func (s *Subscription) Chan() <-chan event.Envelope {
	return s.ch
}
