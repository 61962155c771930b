// Package config provides Viper-based configuration loading for the
// coordination server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the transport listener settings.
type ServerConfig struct {
	// Host is the bind address for both listeners.
	Host string `mapstructure:"host"`
	// TCPPort is the reliable control listener port.
	TCPPort int `mapstructure:"tcp_port"`
	// UDPPort is the rendezvous datagram listener port.
	UDPPort int `mapstructure:"udp_port"`
	// MaxFrameBytes bounds a single frame section on the wire.
	MaxFrameBytes int `mapstructure:"max_frame_bytes"`
}

// TCPAddr returns the "host:port" control listen address.
func (s ServerConfig) TCPAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.TCPPort)
}

// UDPAddr returns the "host:port" rendezvous listen address.
func (s ServerConfig) UDPAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.UDPPort)
}

// LobbyConfig holds lobby state machine settings.
type LobbyConfig struct {
	// Capacity is the member bound per lobby.
	Capacity int `mapstructure:"capacity"`
}

// LivenessConfig holds heartbeat eviction settings.
type LivenessConfig struct {
	// Timeout is how long a client may go without a heartbeat.
	Timeout time.Duration `mapstructure:"timeout"`
	// SweepInterval is how often the monitor scans for expired clients.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RendezvousConfig holds match start address collection settings.
type RendezvousConfig struct {
	// Timeout bounds the wait for all members to report an address.
	Timeout time.Duration `mapstructure:"timeout"`
	// PollInterval is how often the coordinator re-checks for addresses.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// MetricsConfig holds the telemetry listener settings.
type MetricsConfig struct {
	// Enabled toggles the metrics HTTP listener.
	Enabled bool `mapstructure:"enabled"`
	// ListenAddress is where the metrics handler is served.
	ListenAddress string `mapstructure:"listen_address"`
}

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Lobby      LobbyConfig      `mapstructure:"lobby"`
	Liveness   LivenessConfig   `mapstructure:"liveness"`
	Rendezvous RendezvousConfig `mapstructure:"rendezvous"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// Validate checks all configuration invariants.
func (c Config) Validate() error {
	var errs []string

	if c.Server.TCPPort < 1 || c.Server.TCPPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.tcp_port must be 1-65535, got %d", c.Server.TCPPort))
	}
	if c.Server.UDPPort < 1 || c.Server.UDPPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.udp_port must be 1-65535, got %d", c.Server.UDPPort))
	}
	if c.Server.MaxFrameBytes < 256 {
		errs = append(errs, fmt.Sprintf("server.max_frame_bytes must be >= 256, got %d", c.Server.MaxFrameBytes))
	}
	if c.Lobby.Capacity < 1 {
		errs = append(errs, fmt.Sprintf("lobby.capacity must be >= 1, got %d", c.Lobby.Capacity))
	}
	if c.Liveness.Timeout <= 0 {
		errs = append(errs, "liveness.timeout must be positive")
	}
	if c.Liveness.SweepInterval <= 0 {
		errs = append(errs, "liveness.sweep_interval must be positive")
	}
	if c.Rendezvous.Timeout <= 0 {
		errs = append(errs, "rendezvous.timeout must be positive")
	}
	if c.Rendezvous.PollInterval <= 0 {
		errs = append(errs, "rendezvous.poll_interval must be positive")
	}
	if c.Rendezvous.PollInterval > c.Rendezvous.Timeout {
		errs = append(errs, "rendezvous.poll_interval must not exceed rendezvous.timeout")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Sprintf("logging.format must be \"json\" or \"console\", got %q", c.Logging.Format))
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		errs = append(errs, "metrics.listen_address must not be empty when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from an optional file, applies MATCHPOINT_ env
// overrides and defaults, and validates the result. An empty path loads
// defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetEnvPrefix("MATCHPOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always unmarshal cleanly.
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.tcp_port", 18001)
	v.SetDefault("server.udp_port", 18000)
	v.SetDefault("server.max_frame_bytes", 4096)

	v.SetDefault("lobby.capacity", 6)

	v.SetDefault("liveness.timeout", "5s")
	v.SetDefault("liveness.sweep_interval", "500ms")

	v.SetDefault("rendezvous.timeout", "5s")
	v.SetDefault("rendezvous.poll_interval", "200ms")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_address", ":9100")
}
