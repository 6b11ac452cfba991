package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c-basalt/yumi-feed/internal/api"
	"github.com/c-basalt/yumi-feed/internal/codec"
	"github.com/c-basalt/yumi-feed/internal/event"
)

// Conn owns one room's connection to the live event stream: the state
// machine, the envelope ring buffer, and the listener fan-out.
//
// A supervising goroutine calls Run, which drives
// resolve → handshake → connect → reconnect until the context ends or
// Close is called. Everything received is wrapped in an Envelope with a
// per-room increasing Index and offered non-blockingly to every listener.
type Conn struct {
	inputID int64
	cfg     Config
	api     *api.Client
	decoder *codec.Decoder
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	info      api.RoomInfo
	resolved  bool
	token     string
	client    *wsClient
	listeners map[uuid.UUID]*Subscription
	index     uint64
	closed    bool

	ring *ring
}

// NewConn creates a connection for a caller-given room id (canonical or
// short alias). The id is validated here; resolution to canonical
// identity happens inside Run.
func NewConn(roomID int64, apiClient *api.Client, cfg Config, logger *slog.Logger) (*Conn, error) {
	if roomID <= 0 {
		return nil, fmt.Errorf("invalid room id %d", roomID)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RingSize < 1 {
		cfg = DefaultConfig()
	}

	return &Conn{
		inputID:   roomID,
		cfg:       cfg,
		api:       apiClient,
		decoder:   codec.NewDecoder(logger),
		logger:    logger.With("room", roomID),
		state:     StateIdle,
		listeners: make(map[uuid.UUID]*Subscription),
		ring:      newRing(cfg.RingSize),
	}, nil
}

// InputID returns the id the connection was created with.
func (c *Conn) InputID() int64 {
	return c.inputID
}

// Info returns the resolved room identity. Before resolution completes it
// reports the input id under both aliases.
func (c *Conn) Info() api.RoomInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.resolved {
		return api.RoomInfo{RoomID: c.inputID, ShortID: c.inputID}
	}
	return c.info
}

// Matches reports whether id names this room by input id, canonical id,
// or short alias.
func (c *Conn) Matches(id int64) bool {
	info := c.Info()
	return id == c.inputID || id == info.RoomID || id == info.ShortID
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	old := c.state
	c.state = s
	c.mu.Unlock()

	if old != s {
		c.logger.Debug("state change", "from", old, "to", s)
	}
}

// Run drives the connection until ctx is cancelled or Close is called.
// Steady-state failures (network, protocol, auth) are logged and retried,
// never returned; the only return paths are cancellation and close.
func (c *Conn) Run(ctx context.Context) {
	for {
		if err := c.runOnce(ctx); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectBackoff):
		}
	}
}

// runOnce performs one resolve → handshake → serve pass. A non-nil
// return means the connection is finished (cancelled or closed).
func (c *Conn) runOnce(ctx context.Context) error {
	if c.isClosed() || ctx.Err() != nil {
		return ErrClosed
	}

	if !c.isResolved() {
		c.setState(StateResolving)
		info, err := c.api.ResolveRoom(ctx, c.inputID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("failed to resolve room, will retry", "error", err)
			return nil
		}
		c.mu.Lock()
		c.info = info
		c.resolved = true
		c.mu.Unlock()
	}

	c.setState(StateHandshaking)
	hs, err := c.api.FetchHandshake(ctx, c.Info().RoomID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("handshake failed, will retry", "error", err)
		return nil
	}

	if err := c.serveCandidates(ctx, hs); err != nil {
		c.logger.Info("refreshing handshake", "reason", err)
	}
	return nil
}

// serveCandidates stores the handshake token and walks the candidate
// server list in order with a fixed backoff between attempts. It returns
// when the list runs out, goes stale past CandidateTTL, or the token is
// cleared by Reset; each return path sends the supervisor back to a fresh
// handshake. Staleness is checked before each attempt, never mid-attempt.
func (c *Conn) serveCandidates(ctx context.Context, hs api.Handshake) error {
	c.mu.Lock()
	c.token = hs.Token
	c.mu.Unlock()

	for i, server := range hs.Servers {
		if c.isClosed() {
			return ErrClosed
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(hs.ObtainedAt) > c.cfg.CandidateTTL {
			return ErrStaleServers
		}
		if !c.tokenValid(hs.Token) {
			return ErrTokenCleared
		}

		if err := c.serveOne(ctx, server, hs); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.isClosed() {
				return ErrClosed
			}
			c.logger.Warn("stream connection ended",
				"server", server,
				"attempt", i+1,
				"error", err,
			)
		}

		c.setState(StateReconnecting)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectBackoff):
		}
	}
	return nil
}

// serveOne connects to a single server and pumps frames until the socket
// dies or the connection is torn down.
func (c *Conn) serveOne(ctx context.Context, server string, hs api.Handshake) error {
	client := newWSClient(clientConfig{
		URL:               server,
		HeartbeatInterval: c.cfg.HeartbeatInterval,
		ReadGrace:         c.cfg.ReadGrace,
		DialTimeout:       c.cfg.DialTimeout,
		WriteTimeout:      c.cfg.WriteTimeout,
	}, c.logger)

	if err := client.connect(ctx); err != nil {
		return fmt.Errorf("dial %s: %w", server, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		client.close()
		return ErrClosed
	}
	c.client = client
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.client == client {
			c.client = nil
		}
		c.mu.Unlock()
		client.close()
	}()

	frame, err := codec.EncodeHandshake(hs.UID, c.Info().RoomID, hs.Token)
	if err != nil {
		return fmt.Errorf("encode handshake: %w", err)
	}
	if err := client.send(frame); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}

	c.setState(StateConnected)
	c.logger.Info("connected to stream server", "server", server, "uid", hs.UID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-client.done:
			// Torn down by Reset or Close.
			return ErrNotConnected
		case err := <-client.errors:
			return err
		case msg := <-client.messages:
			c.handleFrame(msg)
		}
	}
}

// handleFrame decodes one binary frame and fans the resulting events out
// to the ring buffer and every listener queue. A listener whose queue is
// full is treated as dead and evicted so it cannot stall the others.
func (c *Conn) handleFrame(msg TimestampedMessage) {
	events := c.decoder.Decode(msg.Data)
	if len(events) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ev := range events {
		c.index++
		env := event.Envelope{
			Index:     c.index,
			Timestamp: msg.ReceivedAt,
			Event:     ev,
		}

		c.ring.append(env)

		for id, sub := range c.listeners {
			select {
			case sub.ch <- env:
			default:
				c.logger.Warn("listener queue full, discarding listener", "listener", id)
				delete(c.listeners, id)
				close(sub.ch)
			}
		}
	}
}

// Subscribe registers a listener queue and synchronously replays every
// buffered envelope with Index > resumeAfter before returning, so the
// caller misses nothing between its cursor and subscription time (bounded
// by ring retention). Pass 0 to skip replay of history it has not seen.
func (c *Conn) Subscribe(resumeAfter uint64) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	// Queue holds 2x the ring so a full replay still leaves headroom.
	sub := newSubscription(c.cfg.RingSize * 2)

	for _, env := range c.ring.after(resumeAfter) {
		sub.ch <- env
	}

	c.listeners[sub.id] = sub
	return sub, nil
}

// Unsubscribe discards a listener queue. Unknown or already-evicted
// subscriptions are a no-op.
func (c *Conn) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.listeners[sub.id]; ok {
		delete(c.listeners, sub.id)
		close(sub.ch)
	}
}

// Reset clears the current token and force-closes the live socket. The
// supervising loop observes the dead socket and cleared token and
// re-enters handshaking. Used when shared auth material changes upstream.
func (c *Conn) Reset() {
	c.mu.Lock()
	c.token = ""
	client := c.client
	c.client = nil
	c.mu.Unlock()

	c.logger.Info("resetting stream connection")
	if client != nil {
		client.close()
	}
}

// Close terminates the connection permanently: the socket is closed,
// Run unwinds, and every listener queue is discarded.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateClosed
	client := c.client
	c.client = nil
	subs := c.listeners
	c.listeners = make(map[uuid.UUID]*Subscription)
	c.mu.Unlock()

	if client != nil {
		client.close()
	}
	for _, sub := range subs {
		close(sub.ch)
	}

	c.logger.Info("room connection closed")
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) isResolved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved
}

func (c *Conn) tokenValid(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token == token && token != ""
}
