package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "streamd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
station:
  name: éist
  stream_url: https://stream.example.com/live
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8337", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Playback.MaxReconnectAttempts)
	assert.Equal(t, time.Second, cfg.BackoffBase())
	assert.Equal(t, time.Minute, cfg.BackoffCap())
	assert.Equal(t, 5*time.Second, cfg.StallPollInterval())
	assert.Equal(t, 30*time.Second, cfg.StallTimeout())
	assert.Equal(t, 15*time.Second, cfg.AckTimeout())
	assert.Equal(t, 24*time.Hour, cfg.ResumeWindow())
	assert.Equal(t, 30*time.Second, cfg.MetadataPollInterval())
	assert.Equal(t, "mpv", cfg.Engine.Type)
	assert.Equal(t, "streamd.db", cfg.State.Path)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name: "missing stream url",
			content: `
station:
  name: éist
`,
			errMsg: "StreamURL",
		},
		{
			name: "missing station name",
			content: `
station:
  stream_url: https://stream.example.com/live
`,
			errMsg: "Name",
		},
		{
			name: "stream url not a url",
			content: `
station:
  name: éist
  stream_url: not-a-url
`,
			errMsg: "StreamURL",
		},
		{
			name: "cap below base",
			content: `
station:
  name: éist
  stream_url: https://stream.example.com/live
playback:
  backoff_base_ms: 5000
  backoff_cap_ms: 1000
`,
			errMsg: "backoff_cap_ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EIST_STREAM_URL", "https://alt.example.com/live")
	t.Setenv("EIST_STATE_DB", "/var/lib/streamd/state.db")

	path := writeConfig(t, `
station:
  name: éist
  stream_url: https://stream.example.com/live
state:
  path: streamd.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://alt.example.com/live", cfg.Station.StreamURL)
	assert.Equal(t, "/var/lib/streamd/state.db", cfg.State.Path)
}

func TestLoad_AckTimeoutDisabled(t *testing.T) {
	path := writeConfig(t, `
station:
  name: éist
  stream_url: https://stream.example.com/live
playback:
  ack_timeout_sec: -1
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), cfg.AckTimeout())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
