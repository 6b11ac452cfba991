package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL           = "https://api.live.bilibili.com"
	DefaultAPITimeout        = 10 * time.Second
	DefaultMaxRetries        = 3
	DefaultRingSize          = 10000
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultReadGrace         = 5 * time.Second
	DefaultDialTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultReconnectBackoff  = 3 * time.Second
	DefaultCandidateTTL      = 300 * time.Second
	DefaultQueueSize         = 1000
	DefaultWindowSize        = 5000
	DefaultWindowDuration    = 300 * time.Second
)

func (c *FeedConfig) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Stream defaults
	if c.Stream.RingSize == 0 {
		c.Stream.RingSize = DefaultRingSize
	}
	if c.Stream.HeartbeatInterval == 0 {
		c.Stream.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Stream.ReadGrace == 0 {
		c.Stream.ReadGrace = DefaultReadGrace
	}
	if c.Stream.DialTimeout == 0 {
		c.Stream.DialTimeout = DefaultDialTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.ReconnectBackoff == 0 {
		c.Stream.ReconnectBackoff = DefaultReconnectBackoff
	}
	if c.Stream.CandidateTTL == 0 {
		c.Stream.CandidateTTL = DefaultCandidateTTL
	}

	// Merger defaults
	if c.Merger.QueueSize == 0 {
		c.Merger.QueueSize = DefaultQueueSize
	}
	if c.Merger.WindowSize == 0 {
		c.Merger.WindowSize = DefaultWindowSize
	}
	if c.Merger.WindowDuration == 0 {
		c.Merger.WindowDuration = DefaultWindowDuration
	}
}
