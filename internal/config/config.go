package config

import "time"

// FeedConfig is the root configuration for a feed instance.
type FeedConfig struct {
	Rooms  []int64      `yaml:"rooms"`
	API    APIConfig    `yaml:"api"`
	Stream StreamConfig `yaml:"stream"`
	Merger MergerConfig `yaml:"merger"`
}

// APIConfig holds web API settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	CookieFile string        `yaml:"cookie_file"` // Netscape-format cookie jar, optional
}

// StreamConfig holds per-room stream connection settings.
type StreamConfig struct {
	RingSize          int           `yaml:"ring_size"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ReadGrace         time.Duration `yaml:"read_grace"`
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ReconnectBackoff  time.Duration `yaml:"reconnect_backoff"`
	CandidateTTL      time.Duration `yaml:"candidate_ttl"`
}

// MergerConfig holds cross-room dedup settings.
type MergerConfig struct {
	QueueSize      int           `yaml:"queue_size"`
	WindowSize     int           `yaml:"window_size"`
	WindowDuration time.Duration `yaml:"window_duration"`
}
