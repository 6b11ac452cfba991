package room

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("room connection closed")
	ErrStaleServers = errors.New("candidate server list expired")
	ErrTokenCleared = errors.New("handshake token cleared")
)

// State is the lifecycle state of a RoomConnection. closed is terminal.
type State string

const (
	StateIdle         State = "idle"
	StateResolving    State = "resolving"
	StateHandshaking  State = "handshaking"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Config configures a RoomConnection.
type Config struct {
	RingSize          int           // envelope ring buffer capacity
	HeartbeatInterval time.Duration // app-level heartbeat frame cadence
	ReadGrace         time.Duration // slack past HeartbeatInterval before a read times out
	DialTimeout       time.Duration // websocket dial timeout
	WriteTimeout      time.Duration // websocket write deadline
	ReconnectBackoff  time.Duration // fixed wait between candidate attempts
	CandidateTTL      time.Duration // server list freshness budget before re-handshake
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		RingSize:          10000,
		HeartbeatInterval: 30 * time.Second,
		ReadGrace:         5 * time.Second,
		DialTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		ReconnectBackoff:  3 * time.Second,
		CandidateTTL:      300 * time.Second,
	}
}

// TimestampedMessage is one binary frame with its local receipt time.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}
