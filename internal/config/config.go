// Package config loads roo-task settings from defaults, an optional TOML file
// and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultSocketPath       = "/tmp/roo-code.sock"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultPollInterval     = 250 * time.Millisecond
	DefaultDialTimeout      = 5 * time.Second
)

// Environment variables read by Load.
const (
	EnvSocketPath       = "ROO_CODE_IPC_SOCKET_PATH"
	EnvHandshakeTimeout = "ROO_TASK_HANDSHAKE_TIMEOUT"
	EnvPollInterval     = "ROO_TASK_POLL_INTERVAL"
	EnvLogLevel         = "ROO_TASK_LOG_LEVEL"
	EnvLogFormat        = "ROO_TASK_LOG_FORMAT"
	EnvProfile          = "ROO_TASK_PROFILE"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds runtime settings.
type Config struct {
	SocketPath       string
	HandshakeTimeout time.Duration
	PollInterval     time.Duration
	DialTimeout      time.Duration
	// WaitForSocket bounds how long to wait for the socket to appear before
	// connecting. Zero connects right away.
	WaitForSocket time.Duration
	LogLevel      string
	LogFormat     string
	// ProfilePath names a YAML or JSON task configuration overlaid on the
	// default profile.
	ProfilePath string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		SocketPath:       DefaultSocketPath,
		HandshakeTimeout: DefaultHandshakeTimeout,
		PollInterval:     DefaultPollInterval,
		DialTimeout:      DefaultDialTimeout,
		LogLevel:         "info",
		LogFormat:        "console",
	}
}

// settings.toml key mapping.
type fileConfig struct {
	SocketPath       string `toml:"socket_path"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	PollInterval     string `toml:"poll_interval"`
	DialTimeout      string `toml:"dial_timeout"`
	WaitForSocket    string `toml:"wait_for_socket"`
	LogLevel         string `toml:"log_level"`
	LogFormat        string `toml:"log_format"`
	Profile          string `toml:"profile"`
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// path is empty) and environment overrides, then validates it.
func Load(path string) (Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
	}

	if meta.IsDefined("socket_path") {
		c.SocketPath = strings.TrimSpace(raw.SocketPath)
	}
	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"handshake_timeout", raw.HandshakeTimeout, &c.HandshakeTimeout},
		{"poll_interval", raw.PollInterval, &c.PollInterval},
		{"dial_timeout", raw.DialTimeout, &c.DialTimeout},
		{"wait_for_socket", raw.WaitForSocket, &c.WaitForSocket},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := parseDuration(d.key, d.val)
		if err != nil {
			return err
		}
		*d.dst = v
	}
	if meta.IsDefined("log_level") {
		c.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_format") {
		c.LogFormat = strings.TrimSpace(raw.LogFormat)
	}
	if meta.IsDefined("profile") {
		c.ProfilePath = strings.TrimSpace(raw.Profile)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvSocketPath)); v != "" {
		c.SocketPath = v
	}
	if v := strings.TrimSpace(getenv(EnvHandshakeTimeout)); v != "" {
		d, err := parseDuration(EnvHandshakeTimeout, v)
		if err != nil {
			return err
		}
		c.HandshakeTimeout = d
	}
	if v := strings.TrimSpace(getenv(EnvPollInterval)); v != "" {
		d, err := parseDuration(EnvPollInterval, v)
		if err != nil {
			return err
		}
		c.PollInterval = d
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(getenv(EnvLogFormat)); v != "" {
		c.LogFormat = v
	}
	if v := strings.TrimSpace(getenv(EnvProfile)); v != "" {
		c.ProfilePath = v
	}
	return nil
}

func parseDuration(name, v string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
	}
	return d, nil
}

// Validate checks the settings are usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SocketPath) == "" {
		return fmt.Errorf("%w: socket path is empty", ErrInvalidConfig)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: handshake timeout must be positive", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("%w: dial timeout must be positive", ErrInvalidConfig)
	}
	if c.WaitForSocket < 0 {
		return fmt.Errorf("%w: wait for socket must not be negative", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log format %q (expected console or json)", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
