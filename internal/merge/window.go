package merge

import (
	"time"
)

// dedupKey identifies an event for duplicate suppression.
type dedupKey struct {
	cmd         string
	fingerprint string
}

// dedupWindow is an insertion-ordered set of recently seen dedup keys,
// bounded by an entry cap and a time duration. Keys are only ever
// inserted (duplicates are dropped before reaching the window), so
// insertion order doubles as timestamp order.
type dedupWindow struct {
	seen     map[dedupKey]time.Time
	order    []dedupKey // FIFO eviction order
	capacity int
	duration time.Duration
}

func newDedupWindow(capacity int, duration time.Duration) *dedupWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &dedupWindow{
		seen:     make(map[dedupKey]time.Time, capacity),
		order:    make([]dedupKey, 0, capacity),
		capacity: capacity,
		duration: duration,
	}
}

// cutoff returns the oldest timestamp an envelope may carry and still be
// delivered. Normally now-duration; once the window is at capacity, the
// midpoint between the oldest retained entry and now, which tightens the
// effective window smoothly under sustained volume instead of growing
// memory or dropping coverage abruptly.
func (w *dedupWindow) cutoff(now time.Time) time.Time {
	if len(w.order) < w.capacity {
		return now.Add(-w.duration)
	}
	oldest := w.seen[w.order[0]]
	return oldest.Add(now.Sub(oldest) / 2)
}

// contains reports whether the key was already seen.
func (w *dedupWindow) contains(key dedupKey) bool {
	_, ok := w.seen[key]
	return ok
}

// add records a key. The caller trims afterwards.
func (w *dedupWindow) add(key dedupKey, ts time.Time) {
	w.seen[key] = ts
	w.order = append(w.order, key)
}

// trim evicts oldest entries first while over the entry cap, then while
// older than the fixed duration. Capacity eviction runs first so bursts
// shrink the window before the time rule is consulted.
func (w *dedupWindow) trim(now time.Time) {
	for len(w.order) > w.capacity {
		w.evictOldest()
	}
	limit := now.Add(-w.duration)
	for len(w.order) > 0 && w.seen[w.order[0]].Before(limit) {
		w.evictOldest()
	}
}

func (w *dedupWindow) evictOldest() {
	key := w.order[0]
	w.order = w.order[1:]
	delete(w.seen, key)
}

func (w *dedupWindow) len() int {
	return len(w.order)
}
