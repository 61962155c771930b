package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 18001, cfg.Server.TCPPort)
	assert.Equal(t, 18000, cfg.Server.UDPPort)
	assert.Equal(t, 6, cfg.Lobby.Capacity)
	assert.Equal(t, 5*time.Second, cfg.Liveness.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Liveness.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.Rendezvous.Timeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Rendezvous.PollInterval)
}

func TestAddrHelpers(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "10.0.0.1"
	assert.Equal(t, "10.0.0.1:18001", cfg.Server.TCPAddr())
	assert.Equal(t, "10.0.0.1:18000", cfg.Server.UDPAddr())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tcp port", func(c *Config) { c.Server.TCPPort = 0 }},
		{"huge udp port", func(c *Config) { c.Server.UDPPort = 70000 }},
		{"tiny frame limit", func(c *Config) { c.Server.MaxFrameBytes = 16 }},
		{"zero capacity", func(c *Config) { c.Lobby.Capacity = 0 }},
		{"zero liveness timeout", func(c *Config) { c.Liveness.Timeout = 0 }},
		{"zero sweep interval", func(c *Config) { c.Liveness.SweepInterval = 0 }},
		{"zero rendezvous timeout", func(c *Config) { c.Rendezvous.Timeout = 0 }},
		{"poll exceeds timeout", func(c *Config) {
			c.Rendezvous.PollInterval = 10 * time.Second
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"metrics without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddress = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: 127.0.0.1
  tcp_port: 28001
  udp_port: 28000
lobby:
  capacity: 4
liveness:
  timeout: 2s
  sweep_interval: 100ms
logging:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 28001, cfg.Server.TCPPort)
	assert.Equal(t, 4, cfg.Lobby.Capacity)
	assert.Equal(t, 2*time.Second, cfg.Liveness.Timeout)
	// Unspecified keys keep defaults.
	assert.Equal(t, 5*time.Second, cfg.Rendezvous.Timeout)
	assert.Equal(t, 4096, cfg.Server.MaxFrameBytes)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadInvalidFileValuesRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lobby:\n  capacity: 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
