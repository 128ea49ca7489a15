// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Station  StationConfig  `yaml:"station"`
	Playback PlaybackConfig `yaml:"playback"`
	Metadata MetadataConfig `yaml:"metadata"`
	Engine   EngineConfig   `yaml:"engine"`
	State    StateConfig    `yaml:"state"`
}

// ServerConfig represents the local control API configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:"127.0.0.1:8337"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info"`
}

// StationConfig represents the station identity and its fixed stream URL.
type StationConfig struct {
	Name              string `yaml:"name" validate:"required"`
	StreamURL         string `yaml:"stream_url" validate:"required,url"`
	OfflineArtworkURL string `yaml:"offline_artwork_url" validate:"omitempty,url"`
}

// PlaybackConfig represents reconnect and stall policy configuration.
type PlaybackConfig struct {
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" default:"10" validate:"gte=1,lte=100"`
	BackoffBaseMs        int `yaml:"backoff_base_ms" default:"1000" validate:"gte=1"`
	BackoffCapMs         int `yaml:"backoff_cap_ms" default:"60000" validate:"gte=1"`
	StallPollIntervalSec int `yaml:"stall_poll_interval_sec" default:"5" validate:"gte=1"`
	StallTimeoutSec      int `yaml:"stall_timeout_sec" default:"30" validate:"gte=1"`
	AckTimeoutSec        int `yaml:"ack_timeout_sec" default:"15" validate:"gte=-1"`
	ResumeWindowHours    int `yaml:"resume_window_hours" default:"24" validate:"gte=1"`
}

// MetadataConfig represents the station now-playing source configuration.
// An empty URL disables metadata polling.
type MetadataConfig struct {
	NowPlayingURL   string `yaml:"now_playing_url" validate:"omitempty,url"`
	PollIntervalSec int    `yaml:"poll_interval_sec" default:"30" validate:"gte=5"`
}

// EngineConfig represents the media engine selection and its settings.
type EngineConfig struct {
	Type     string         `yaml:"type" default:"mpv" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// StateConfig represents local persistence configuration.
type StateConfig struct {
	Path string `yaml:"path" default:"streamd.db"`
}

// Load loads configuration from a YAML file. Environment variables take
// precedence over file values for deployment-specific fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("EIST_STREAM_URL"); v != "" {
		c.Station.StreamURL = v
	}
	if v := os.Getenv("EIST_NOWPLAYING_URL"); v != "" {
		c.Metadata.NowPlayingURL = v
	}
	if v := os.Getenv("EIST_STATE_DB"); v != "" {
		c.State.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	if c.Playback.BackoffCapMs < c.Playback.BackoffBaseMs {
		return errors.Newf("backoff_cap_ms (%d) must not be below backoff_base_ms (%d)",
			c.Playback.BackoffCapMs, c.Playback.BackoffBaseMs)
	}
	return nil
}

// BackoffBase returns the reconnect backoff base delay.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Playback.BackoffBaseMs) * time.Millisecond
}

// BackoffCap returns the reconnect backoff delay cap.
func (c *Config) BackoffCap() time.Duration {
	return time.Duration(c.Playback.BackoffCapMs) * time.Millisecond
}

// StallPollInterval returns the engine state poll cadence.
func (c *Config) StallPollInterval() time.Duration {
	return time.Duration(c.Playback.StallPollIntervalSec) * time.Second
}

// StallTimeout returns the continuous-buffering threshold.
func (c *Config) StallTimeout() time.Duration {
	return time.Duration(c.Playback.StallTimeoutSec) * time.Second
}

// AckTimeout returns the command acknowledgment timeout. A configured -1
// disables the guard.
func (c *Config) AckTimeout() time.Duration {
	if c.Playback.AckTimeoutSec < 0 {
		return -1
	}
	return time.Duration(c.Playback.AckTimeoutSec) * time.Second
}

// ResumeWindow returns how recently playback must have happened for a remote
// play command to auto-resume.
func (c *Config) ResumeWindow() time.Duration {
	return time.Duration(c.Playback.ResumeWindowHours) * time.Hour
}

// MetadataPollInterval returns the now-playing poll cadence.
func (c *Config) MetadataPollInterval() time.Duration {
	return time.Duration(c.Metadata.PollIntervalSec) * time.Second
}
