package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c-basalt/yumi-feed/internal/api"
	"github.com/c-basalt/yumi-feed/internal/room"
)

// Registry owns the set of active room connections and reconciles it
// against a desired room-id set. Each connection gets one supervising
// goroutine that drives its handshake/connect/reconnect loop until the
// room is removed or the registry closes.
type Registry struct {
	apiClient *api.Client
	cfg       room.Config
	logger    *slog.Logger

	mu      sync.Mutex
	rooms   map[int64]*room.Conn           // keyed by the caller-given id
	cancels map[int64]context.CancelFunc
	closed  bool

	wg sync.WaitGroup
}

// Stats summarizes the registry's current connections.
type Stats struct {
	Rooms     int
	Connected int
}

// New creates a registry. All connections share cfg and the API client
// (and through it the room metadata cache).
func New(apiClient *api.Client, cfg room.Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		apiClient: apiClient,
		cfg:       cfg,
		logger:    logger,
		rooms:     make(map[int64]*room.Conn),
		cancels:   make(map[int64]context.CancelFunc),
	}
}

// UpdateRooms reconciles active connections against desired ids
// (canonical or short aliases). Rooms not in desired are closed and
// evicted; missing ones are added and started. Calling it twice with the
// same set is a no-op. Invalid ids fail the whole call synchronously
// before any change is applied.
func (r *Registry) UpdateRooms(ctx context.Context, desired []int64) error {
	for _, id := range desired {
		if id <= 0 {
			return fmt.Errorf("invalid room id %d", id)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return room.ErrClosed
	}

	// Close rooms no longer desired.
	for key, conn := range r.rooms {
		if !matchesAny(conn, desired) {
			r.logger.Info("removing room", "room", key)
			r.cancels[key]()
			delete(r.cancels, key)
			delete(r.rooms, key)
			conn.Close()
		}
	}

	// Add rooms not yet present under any alias.
	for _, id := range desired {
		if r.lookupLocked(id) != nil {
			continue
		}

		conn, err := room.NewConn(id, r.apiClient, r.cfg, r.logger)
		if err != nil {
			return fmt.Errorf("add room %d: %w", id, err)
		}

		r.logger.Info("adding room", "room", id)
		runCtx, cancel := context.WithCancel(ctx)
		r.rooms[id] = conn
		r.cancels[id] = cancel

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			conn.Run(runCtx)
		}()
	}

	return nil
}

// Get returns the connection for an id (input, canonical, or short
// alias).
func (r *Registry) Get(id int64) (*room.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn := r.lookupLocked(id)
	return conn, conn != nil
}

// Rooms returns a snapshot of active connections keyed by canonical id
// and short-id alias.
func (r *Registry) Rooms() map[int64]*room.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int64]*room.Conn, len(r.rooms)*2)
	for _, conn := range r.rooms {
		info := conn.Info()
		out[info.RoomID] = conn
		out[info.ShortID] = conn
	}
	return out
}

// ResetConnections resets every active connection. Used when shared auth
// material (cookies) changes externally and live tokens must be refetched.
func (r *Registry) ResetConnections() {
	r.mu.Lock()
	conns := make([]*room.Conn, 0, len(r.rooms))
	for _, conn := range r.rooms {
		conns = append(conns, conn)
	}
	r.mu.Unlock()

	r.logger.Info("resetting connections", "rooms", len(conns))
	for _, conn := range conns {
		conn.Reset()
	}
}

// Stats returns current counts.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{Rooms: len(r.rooms)}
	for _, conn := range r.rooms {
		if conn.State() == room.StateConnected {
			s.Connected++
		}
	}
	return s
}

// Close cancels every supervising goroutine, closes every connection,
// and waits for the supervisors to unwind.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	conns := make([]*room.Conn, 0, len(r.rooms))
	for key, conn := range r.rooms {
		r.cancels[key]()
		conns = append(conns, conn)
	}
	r.rooms = make(map[int64]*room.Conn)
	r.cancels = make(map[int64]context.CancelFunc)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	r.wg.Wait()

	r.logger.Info("registry closed")
}

// lookupLocked finds a connection matching id under any alias.
func (r *Registry) lookupLocked(id int64) *room.Conn {
	if conn, ok := r.rooms[id]; ok {
		return conn
	}
	for _, conn := range r.rooms {
		if conn.Matches(id) {
			return conn
		}
	}
	return nil
}

func matchesAny(conn *room.Conn, ids []int64) bool {
	for _, id := range ids {
		if conn.Matches(id) {
			return true
		}
	}
	return false
}
