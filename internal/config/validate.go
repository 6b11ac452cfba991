package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *FeedConfig) Validate() error {
	if len(c.Rooms) == 0 {
		return errors.New("rooms requires at least one room id")
	}
	for i, id := range c.Rooms {
		if id <= 0 {
			return fmt.Errorf("rooms[%d] must be a positive room id, got %d", i, id)
		}
	}

	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Stream.RingSize < 1 {
		return errors.New("stream.ring_size must be >= 1")
	}
	if c.Stream.HeartbeatInterval <= 0 {
		return errors.New("stream.heartbeat_interval must be > 0")
	}
	if c.Stream.ReconnectBackoff <= 0 {
		return errors.New("stream.reconnect_backoff must be > 0")
	}
	if c.Stream.CandidateTTL <= 0 {
		return errors.New("stream.candidate_ttl must be > 0")
	}

	if c.Merger.QueueSize < 1 {
		return errors.New("merger.queue_size must be >= 1")
	}
	if c.Merger.WindowSize < 1 {
		return errors.New("merger.window_size must be >= 1")
	}
	if c.Merger.WindowDuration <= 0 {
		return errors.New("merger.window_duration must be > 0")
	}

	return nil
}
