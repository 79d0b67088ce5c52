package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "/tmp/roo-code.sock", cfg.SocketPath)
	assert.Equal(t, 10*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
}

func TestLoad_FileOverridesOnlyDefinedKeys(t *testing.T) {
	path := writeFile(t, "roo-task.toml", `
socket_path = "/run/roo/ipc.sock"
handshake_timeout = "3s"
wait_for_socket = "30s"
log_format = "json"
`)

	cfg, err := load(path, env(nil))
	require.NoError(t, err)

	want := Default()
	want.SocketPath = "/run/roo/ipc.sock"
	want.HandshakeTimeout = 3 * time.Second
	want.WaitForSocket = 30 * time.Second
	want.LogFormat = "json"
	assert.Equal(t, want, cfg)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "roo-task.toml", `
socket_path = "/run/roo/ipc.sock"
poll_interval = "100ms"
`)

	cfg, err := load(path, env(map[string]string{
		EnvSocketPath:       "/tmp/other.sock",
		EnvHandshakeTimeout: "2s",
		EnvLogLevel:         "debug",
		EnvProfile:          "/etc/roo/profile.yaml",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.sock", cfg.SocketPath)
	assert.Equal(t, 2*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/etc/roo/profile.yaml", cfg.ProfilePath)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		invalid bool
	}{
		{name: "bad duration in file", file: `handshake_timeout = "soon"`, invalid: true},
		{name: "bad duration in env", env: map[string]string{EnvPollInterval: "fast"}, invalid: true},
		{name: "unknown key", file: `socket = "/tmp/x.sock"`, invalid: true},
		{name: "empty socket path", file: `socket_path = "  "`, invalid: true},
		{name: "zero timeout", file: `handshake_timeout = "0s"`, invalid: true},
		{name: "unknown log format", env: map[string]string{EnvLogFormat: "xml"}, invalid: true},
		{name: "malformed toml", file: `socket_path = `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeFile(t, "roo-task.toml", tt.file)
			}
			_, err := load(path, env(tt.env))
			require.Error(t, err)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
