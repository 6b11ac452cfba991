package merge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/c-basalt/yumi-feed/internal/event"
	"github.com/c-basalt/yumi-feed/internal/feature"
)

// ErrClosed is returned by Next once the merger is closed.
var ErrClosed = errors.New("merger closed")

// Config configures a Merger.
type Config struct {
	QueueSize      int           // shared fan-in queue capacity
	WindowSize     int           // dedup window entry cap
	WindowDuration time.Duration // dedup window length
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:      1000,
		WindowSize:     5000,
		WindowDuration: 300 * time.Second,
	}
}

// Merger fans in envelopes from any number of sources, suppresses
// duplicates within a sliding window, and serves survivors one at a
// time through Next.
//
// Pump goroutines only ever push into the shared queue; all dedup state
// is touched exclusively under the consumer's lock. Back-pressure is
// absorbed at the sources (ring buffer plus per-listener queues), so
// pumps offer non-blockingly and drop when the shared queue is full.
type Merger struct {
	cfg       Config
	extractor *feature.Extractor
	logger    *slog.Logger

	queue chan event.Envelope
	done  chan struct{}

	pumpWG sync.WaitGroup

	mu     sync.Mutex
	window *dedupWindow
	closed bool

	// now is swapped out by tests exercising the time window.
	now func() time.Time
}

// New creates a merger. Unset config fields fall back to the defaults
// independently; extractor may be nil to use the built-in one.
func New(cfg Config, extractor *feature.Extractor, logger *slog.Logger) *Merger {
	def := DefaultConfig()
	if cfg.QueueSize < 1 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.WindowSize < 1 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = def.WindowDuration
	}
	if extractor == nil {
		extractor = feature.NewExtractor()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Merger{
		cfg:       cfg,
		extractor: extractor,
		logger:    logger,
		queue:     make(chan event.Envelope, cfg.QueueSize),
		done:      make(chan struct{}),
		window:    newDedupWindow(cfg.WindowSize, cfg.WindowDuration),
		now:       time.Now,
	}
}

// AddSource starts a pump goroutine forwarding envelopes from src into
// the shared queue until src closes or the merger does. The offer is
// non-blocking: when the queue is full the envelope is dropped and
// counted against nobody, never blocking the source side.
func (m *Merger) AddSource(src <-chan event.Envelope) error {
	if src == nil {
		return errors.New("nil source")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.pumpWG.Add(1)
	m.mu.Unlock()

	go m.pump(src)
	return nil
}

func (m *Merger) pump(src <-chan event.Envelope) {
	defer m.pumpWG.Done()

	for {
		select {
		case <-m.done:
			return
		case env, ok := <-src:
			if !ok {
				m.logger.Debug("merge source closed")
				return
			}
			select {
			case m.queue <- env:
			case <-m.done:
				return
			default:
				m.logger.Warn("merge queue full, dropping event", "cmd", env.Event.Cmd)
			}
		}
	}
}

// Next blocks until an envelope passes the dedup filter and returns it.
// It returns an error only on context cancellation or merger close.
func (m *Merger) Next(ctx context.Context) (event.Envelope, error) {
	for {
		select {
		case <-ctx.Done():
			return event.Envelope{}, ctx.Err()
		case <-m.done:
			return event.Envelope{}, ErrClosed
		case env := <-m.queue:
			if m.accept(env) {
				return env, nil
			}
		}
	}
}

// NextTimeout waits up to timeout for the next deliverable envelope.
// Expiry is a normal "no event yet" result, not an error.
func (m *Merger) NextTimeout(timeout time.Duration) (event.Envelope, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	env, err := m.Next(ctx)
	if err != nil {
		return event.Envelope{}, false
	}
	return env, true
}

// accept runs one envelope through the dedup filter, recording it when
// it passes.
func (m *Merger) accept(env event.Envelope) bool {
	cmd, fingerprint := m.extractor.Extract(env.Event)
	key := dedupKey{cmd: cmd, fingerprint: fingerprint}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	// Expire old entries first so a repeat arriving after the window has
	// elapsed is seen as new again.
	m.window.trim(now)

	if env.Timestamp.Before(m.window.cutoff(now)) {
		return false
	}
	if m.window.contains(key) {
		return false
	}

	m.window.add(key, env.Timestamp)
	m.window.trim(now)
	return true
}

// Close stops every pump goroutine and wakes blocked Next callers.
func (m *Merger) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	close(m.done)
	m.pumpWG.Wait()
}
