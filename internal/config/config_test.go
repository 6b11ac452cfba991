package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
rooms:
  - 510
  - 9021378
api:
  base_url: https://api.live.example.test
  cookie_file: /tmp/cookies.txt
stream:
  ring_size: 2000
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Rooms) != 2 || cfg.Rooms[0] != 510 || cfg.Rooms[1] != 9021378 {
		t.Errorf("Rooms = %v, want [510 9021378]", cfg.Rooms)
	}
	if cfg.API.BaseURL != "https://api.live.example.test" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://api.live.example.test")
	}
	if cfg.API.CookieFile != "/tmp/cookies.txt" {
		t.Errorf("API.CookieFile = %q, want %q", cfg.API.CookieFile, "/tmp/cookies.txt")
	}
	if cfg.Stream.RingSize != 2000 {
		t.Errorf("Stream.RingSize = %d, want 2000", cfg.Stream.RingSize)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_COOKIE_FILE", "/home/user/.cookies")

	yaml := `
rooms:
  - 510
api:
  cookie_file: ${TEST_COOKIE_FILE}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.CookieFile != "/home/user/.cookies" {
		t.Errorf("API.CookieFile = %q, want %q", cfg.API.CookieFile, "/home/user/.cookies")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
rooms:
  - 510
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("API.BaseURL = %q, want default %q", cfg.API.BaseURL, DefaultBaseURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.Stream.RingSize != DefaultRingSize {
		t.Errorf("Stream.RingSize = %d, want default %d", cfg.Stream.RingSize, DefaultRingSize)
	}
	if cfg.Stream.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("Stream.HeartbeatInterval = %v, want default %v", cfg.Stream.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.Merger.WindowSize != DefaultWindowSize {
		t.Errorf("Merger.WindowSize = %d, want default %d", cfg.Merger.WindowSize, DefaultWindowSize)
	}
}

func TestLoadWithDefaultsKeepsExplicit(t *testing.T) {
	yaml := `
rooms:
  - 510
stream:
  heartbeat_interval: 10s
merger:
  window_duration: 1m
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Stream.HeartbeatInterval != 10*time.Second {
		t.Errorf("Stream.HeartbeatInterval = %v, want 10s", cfg.Stream.HeartbeatInterval)
	}
	if cfg.Merger.WindowDuration != time.Minute {
		t.Errorf("Merger.WindowDuration = %v, want 1m", cfg.Merger.WindowDuration)
	}
}

func TestValidate(t *testing.T) {
	valid := func() FeedConfig {
		cfg := FeedConfig{Rooms: []int64{510}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*FeedConfig)
		wantErr string
	}{
		{
			name:    "no rooms",
			mutate:  func(c *FeedConfig) { c.Rooms = nil },
			wantErr: "rooms requires at least one room id",
		},
		{
			name:    "negative room id",
			mutate:  func(c *FeedConfig) { c.Rooms = []int64{510, -1} },
			wantErr: "rooms[1] must be a positive room id, got -1",
		},
		{
			name:    "bad base url",
			mutate:  func(c *FeedConfig) { c.API.BaseURL = "ftp://example.test" },
			wantErr: `api.base_url must be an http(s) URL, got "ftp://example.test"`,
		},
		{
			name:    "zero ring size",
			mutate:  func(c *FeedConfig) { c.Stream.RingSize = -1 },
			wantErr: "stream.ring_size must be >= 1",
		},
		{
			name:    "negative heartbeat",
			mutate:  func(c *FeedConfig) { c.Stream.HeartbeatInterval = -time.Second },
			wantErr: "stream.heartbeat_interval must be > 0",
		},
		{
			name:    "zero window size",
			mutate:  func(c *FeedConfig) { c.Merger.WindowSize = -5 },
			wantErr: "merger.window_size must be >= 1",
		},
		{
			name:    "valid config",
			mutate:  func(c *FeedConfig) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestLoadAndValidate_MissingFile(t *testing.T) {
	if _, err := LoadAndValidate(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadAndValidate should fail for a missing file")
	}
}
