// Package config loads the application configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reelsync/reelsync/internal/coordinator"
	"github.com/reelsync/reelsync/internal/peer"
	"github.com/reelsync/reelsync/internal/protocol"
	"github.com/reelsync/reelsync/internal/timeline"
)

// Config is the full application configuration.
type Config struct {
	Session SessionConfig `yaml:"session"`
	Stream  StreamConfig  `yaml:"stream"`
	Control ControlConfig `yaml:"control"`
	Sync    SyncConfig    `yaml:"sync"`
}

// SessionConfig configures the peer connection.
type SessionConfig struct {
	// Identifier is the dialable address both peers agree on out of band.
	// Whoever binds it first hosts; the other side connects to it.
	Identifier      string  `yaml:"identifier"`
	GuestTimeoutSec float64 `yaml:"guest_timeout_sec"`
	SettleMinMs     int     `yaml:"settle_min_ms"`
	SettleMaxMs     int     `yaml:"settle_max_ms"`
}

// StreamConfig describes the local recording.
type StreamConfig struct {
	ID   string `yaml:"id"`
	File string `yaml:"file"`
	// StartTimestamp overrides the timestamp extracted from the filename.
	StartTimestamp   string  `yaml:"start_timestamp"`
	DurationSec      float64 `yaml:"duration_sec"`
	ThumbnailSprite  string  `yaml:"thumbnail_sprite"`
	ThumbnailSeconds float64 `yaml:"thumbnail_seconds"`
}

// ControlConfig configures the local HTTP surface.
type ControlConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// SyncConfig holds the coordination tunables.
type SyncConfig struct {
	DriftThresholdSec float64 `yaml:"drift_threshold_sec"`
	SeekToleranceSec  float64 `yaml:"seek_tolerance_sec"`
	PlayReadyTimeout  string  `yaml:"play_ready_timeout"`
	BufferPollMs      int     `yaml:"buffer_poll_ms"`
}

// Load reads the YAML file at path, fills defaults, and applies
// environment overrides. A missing file is not an error; defaults and the
// environment still apply.
func Load(path string) (*Config, error) {
	config := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if config.Session.Identifier == "" {
		return nil, fmt.Errorf("session identifier is required")
	}
	if config.Stream.File == "" && config.Stream.StartTimestamp == "" {
		return nil, fmt.Errorf("stream file or start timestamp is required")
	}
	return config, nil
}

func (c *Config) applyEnv() {
	c.Session.Identifier = getEnv("REELSYNC_SESSION_ID", c.Session.Identifier)
	c.Control.ListenAddr = getEnv("REELSYNC_CONTROL_ADDR", c.Control.ListenAddr)
	c.Stream.ID = getEnv("REELSYNC_STREAM_ID", c.Stream.ID)
	c.Stream.File = getEnv("REELSYNC_STREAM_FILE", c.Stream.File)
	c.Stream.StartTimestamp = getEnv("REELSYNC_STREAM_START", c.Stream.StartTimestamp)
	c.Sync.BufferPollMs = getEnvAsInt("REELSYNC_BUFFER_POLL_MS", c.Sync.BufferPollMs)
}

func (c *Config) applyDefaults() {
	if c.Session.GuestTimeoutSec == 0 {
		c.Session.GuestTimeoutSec = 3.5
	}
	if c.Session.SettleMinMs == 0 {
		c.Session.SettleMinMs = 250
	}
	if c.Session.SettleMaxMs == 0 {
		c.Session.SettleMaxMs = 500
	}
	if c.Control.ListenAddr == "" {
		c.Control.ListenAddr = "127.0.0.1:8080"
	}
	if c.Sync.DriftThresholdSec == 0 {
		c.Sync.DriftThresholdSec = 0.5
	}
	if c.Sync.SeekToleranceSec == 0 {
		c.Sync.SeekToleranceSec = 0.1
	}
	if c.Sync.PlayReadyTimeout == "" {
		c.Sync.PlayReadyTimeout = "5m"
	}
	if c.Sync.BufferPollMs == 0 {
		c.Sync.BufferPollMs = 500
	}
}

// PeerConfig converts the session section into the connection manager's
// configuration.
func (c *Config) PeerConfig() peer.Config {
	return peer.Config{
		SessionID:    c.Session.Identifier,
		GuestTimeout: time.Duration(c.Session.GuestTimeoutSec * float64(time.Second)),
		SettleMin:    time.Duration(c.Session.SettleMinMs) * time.Millisecond,
		SettleMax:    time.Duration(c.Session.SettleMaxMs) * time.Millisecond,
	}
}

// CoordinatorConfig converts the sync section into the coordinator's
// configuration.
func (c *Config) CoordinatorConfig() (coordinator.Config, error) {
	timeout, err := time.ParseDuration(c.Sync.PlayReadyTimeout)
	if err != nil {
		return coordinator.Config{}, fmt.Errorf("invalid play_ready_timeout: %w", err)
	}
	return coordinator.Config{
		DriftThreshold:   c.Sync.DriftThresholdSec,
		SeekTolerance:    c.Sync.SeekToleranceSec,
		PlayReadyTimeout: timeout,
	}, nil
}

// BufferPollInterval returns the buffer watcher cadence.
func (c *Config) BufferPollInterval() time.Duration {
	return time.Duration(c.Sync.BufferPollMs) * time.Millisecond
}

// ResolveStream produces the announced stream configuration. The start
// timestamp comes from the explicit setting when present, otherwise from
// the recording filename.
func (c *Config) ResolveStream() (protocol.StreamConfig, error) {
	start := c.Stream.StartTimestamp
	if start == "" {
		ts, err := ExtractRecordingTimestamp(filepath.Base(c.Stream.File))
		if err != nil {
			return protocol.StreamConfig{}, fmt.Errorf("cannot determine stream start: %w", err)
		}
		start = ts.Format("2006-01-02T15:04:05.000")
	} else if _, err := timeline.ParseTimestamp(start); err != nil {
		return protocol.StreamConfig{}, fmt.Errorf("invalid start timestamp: %w", err)
	}

	id := c.Stream.ID
	if id == "" {
		base := filepath.Base(c.Stream.File)
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return protocol.StreamConfig{
		StreamID:         id,
		StartTimestamp:   start,
		DurationHint:     c.Stream.DurationSec,
		ThumbnailSprite:  c.Stream.ThumbnailSprite,
		ThumbnailSeconds: c.Stream.ThumbnailSeconds,
	}, nil
}

// GeForce Experience names recordings like
// "Hunt  Showdown 2024.01.15 - 20.00.00.123.mp4", with a two- or
// three-digit fractional part.
var recordingTimestampPattern = regexp.MustCompile(
	`(\d{4})\.(\d{2})\.(\d{2}) - (\d{2})\.(\d{2})\.(\d{2})\.(\d{2,3})\.\w+$`)

// ExtractRecordingTimestamp parses the recording start time out of a
// GeForce-Experience-style filename.
func ExtractRecordingTimestamp(filename string) (time.Time, error) {
	m := recordingTimestampPattern.FindStringSubmatch(filename)
	if m == nil {
		return time.Time{}, fmt.Errorf("filename %q carries no recording timestamp", filename)
	}

	fields := make([]int, 7)
	for i := range fields {
		fields[i], _ = strconv.Atoi(m[i+1])
	}

	// A two-digit fraction is centiseconds.
	millis := fields[6]
	if len(m[7]) == 2 {
		millis *= 10
	}

	return time.Date(fields[0], time.Month(fields[1]), fields[2],
		fields[3], fields[4], fields[5], millis*int(time.Millisecond), time.UTC), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
