package merge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/c-basalt/yumi-feed/internal/event"
)

func chatEnv(index uint64, ts time.Time, text string) event.Envelope {
	raw := fmt.Sprintf(`{"cmd":"DANMU_MSG","info":[[0,1,25,0,1700000000,"x",0],%q,[1,"a"],[],[],"",0,{},null,"tok-%s"]}`, text, text)
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		panic(err)
	}
	return event.Envelope{
		Index:     index,
		Timestamp: ts,
		Event:     event.Event{Cmd: "DANMU_MSG", Data: data, Raw: []byte(raw)},
	}
}

func testMerger(cfg Config) *Merger {
	return New(cfg, nil, nil)
}

func TestNew_PartialConfigDefaults(t *testing.T) {
	// A caller setting only the queue size must still get a real dedup
	// window, not a capacity-1 zero-duration one.
	m := New(Config{QueueSize: 10}, nil, nil)
	defer m.Close()

	def := DefaultConfig()
	if got := cap(m.queue); got != 10 {
		t.Errorf("queue capacity = %d, want 10", got)
	}
	if m.window.capacity != def.WindowSize {
		t.Errorf("window capacity = %d, want default %d", m.window.capacity, def.WindowSize)
	}
	if m.window.duration != def.WindowDuration {
		t.Errorf("window duration = %v, want default %v", m.window.duration, def.WindowDuration)
	}

	src := make(chan event.Envelope, 4)
	if err := m.AddSource(src); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	now := time.Now()
	src <- chatEnv(1, now, "A")
	src <- chatEnv(2, now, "A")

	if _, err := m.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if env, ok := m.NextTimeout(50 * time.Millisecond); ok {
		t.Errorf("duplicate delivered despite defaulted window: %+v", env)
	}
}

func TestNext_DropsDuplicates(t *testing.T) {
	m := testMerger(DefaultConfig())
	defer m.Close()

	src := make(chan event.Envelope, 8)
	if err := m.AddSource(src); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	now := time.Now()
	src <- chatEnv(1, now, "A")
	src <- chatEnv(2, now, "B")
	src <- chatEnv(3, now, "A") // duplicate fingerprint

	first, err := m.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	second, err := m.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.Index != 1 || second.Index != 2 {
		t.Errorf("delivered %d, %d, want 1, 2", first.Index, second.Index)
	}

	// The duplicate was consumed and dropped: nothing left.
	if env, ok := m.NextTimeout(50 * time.Millisecond); ok {
		t.Errorf("unexpected delivery %+v", env)
	}
}

func TestNext_RepeatAfterWindowExpiry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowDuration = time.Second
	m := testMerger(cfg)
	defer m.Close()

	base := time.Now()
	clock := base
	m.now = func() time.Time { return clock }

	src := make(chan event.Envelope, 8)
	if err := m.AddSource(src); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	src <- chatEnv(1, base, "A")
	if _, err := m.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}

	// Same fingerprint after the window has elapsed: the stale entry is
	// trimmed and the event is delivered again.
	clock = base.Add(2 * time.Second)
	src <- chatEnv(2, clock, "A")

	env, ok := m.NextTimeout(time.Second)
	if !ok {
		t.Fatal("repeat after window expiry should be delivered")
	}
	if env.Index != 2 {
		t.Errorf("Index = %d, want 2", env.Index)
	}
}

func TestNext_DropsStaleEnvelopes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowDuration = time.Second
	m := testMerger(cfg)
	defer m.Close()

	src := make(chan event.Envelope, 8)
	if err := m.AddSource(src); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	src <- chatEnv(1, time.Now().Add(-time.Minute), "old")
	src <- chatEnv(2, time.Now(), "fresh")

	env, err := m.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if env.Index != 2 {
		t.Errorf("Index = %d, want 2 (stale envelope dropped)", env.Index)
	}
}

func TestCapacityDegrade(t *testing.T) {
	// With the window at its entry cap, the cutoff becomes the midpoint
	// between the oldest entry and now, so an entry becomes eligible for
	// re-emission sooner than a full duration after first insertion.
	w := newDedupWindow(3, time.Hour)
	base := time.Now()

	w.add(dedupKey{"c", "1"}, base)
	w.add(dedupKey{"c", "2"}, base.Add(time.Minute))
	if got := w.cutoff(base.Add(2 * time.Minute)); !got.Equal(base.Add(2*time.Minute - time.Hour)) {
		t.Errorf("below capacity cutoff = %v, want now-duration", got)
	}

	w.add(dedupKey{"c", "3"}, base.Add(2*time.Minute))

	now := base.Add(10 * time.Minute)
	got := w.cutoff(now)
	want := base.Add(5 * time.Minute) // midpoint of oldest (base) and now
	if !got.Equal(want) {
		t.Errorf("at-capacity cutoff = %v, want %v", got, want)
	}
	if !got.After(now.Add(-time.Hour)) {
		t.Error("tightened cutoff must be later than the fixed-duration cutoff")
	}
}

func TestWindowTrim(t *testing.T) {
	w := newDedupWindow(3, time.Minute)
	base := time.Now()

	for i := 0; i < 5; i++ {
		w.add(dedupKey{"c", fmt.Sprint(i)}, base.Add(time.Duration(i)*time.Second))
		w.trim(base.Add(time.Duration(i) * time.Second))
	}

	if w.len() != 3 {
		t.Fatalf("len = %d, want 3 (capacity eviction)", w.len())
	}
	if w.contains(dedupKey{"c", "0"}) || w.contains(dedupKey{"c", "1"}) {
		t.Error("oldest entries must be evicted first")
	}

	// Time-based eviction.
	w.trim(base.Add(2 * time.Minute))
	if w.len() != 0 {
		t.Errorf("len = %d after duration eviction, want 0", w.len())
	}
}

func TestAddSource_Lifecycle(t *testing.T) {
	m := testMerger(DefaultConfig())

	if err := m.AddSource(nil); err == nil {
		t.Error("nil source must fail synchronously")
	}

	src := make(chan event.Envelope)
	if err := m.AddSource(src); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	// Closing the source ends its pump without affecting the merger.
	close(src)

	src2 := make(chan event.Envelope, 1)
	if err := m.AddSource(src2); err != nil {
		t.Fatalf("AddSource after source close: %v", err)
	}
	src2 <- chatEnv(1, time.Now(), "ok")
	if _, ok := m.NextTimeout(time.Second); !ok {
		t.Error("merger should keep delivering after one source closes")
	}

	m.Close()
	if err := m.AddSource(src2); err != ErrClosed {
		t.Errorf("AddSource after Close = %v, want ErrClosed", err)
	}
	if _, err := m.Next(context.Background()); err != ErrClosed {
		t.Errorf("Next after Close = %v, want ErrClosed", err)
	}
}

func TestNextTimeout_NoEvent(t *testing.T) {
	m := testMerger(DefaultConfig())
	defer m.Close()

	start := time.Now()
	if _, ok := m.NextTimeout(50 * time.Millisecond); ok {
		t.Error("empty merger should report no event")
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Error("NextTimeout returned before expiry")
	}
}

func TestNext_CrossSourceFanIn(t *testing.T) {
	m := testMerger(DefaultConfig())
	defer m.Close()

	a := make(chan event.Envelope, 4)
	b := make(chan event.Envelope, 4)
	if err := m.AddSource(a); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if err := m.AddSource(b); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	now := time.Now()
	a <- chatEnv(1, now, "from-a")
	b <- chatEnv(1, now, "from-b")
	// The same broadcast delivered by both sources: second copy dropped.
	a <- chatEnv(2, now, "shared")
	b <- chatEnv(2, now, "shared")

	got := map[string]int{}
	for i := 0; i < 3; i++ {
		env, ok := m.NextTimeout(time.Second)
		if !ok {
			t.Fatalf("missing delivery %d", i)
		}
		info := env.Event.Data["info"].([]any)
		got[info[1].(string)]++
	}

	if got["from-a"] != 1 || got["from-b"] != 1 || got["shared"] != 1 {
		t.Errorf("deliveries = %v", got)
	}
	if _, ok := m.NextTimeout(50 * time.Millisecond); ok {
		t.Error("cross-source duplicate should have been dropped")
	}
}
