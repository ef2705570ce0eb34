package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "citewatch.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesAllSections(t *testing.T) {
	path := writeTempConfig(t, `
[storage]
path = postgres://localhost/citewatch
crawler = false

[www]
root = 0.0.0.0:9090
secure = true

[auth]
fail_retry_delay = 10m
whitelist = alice, bob ,carol

[logging]
level = debug
file = /var/log/citewatch.log
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/citewatch", cfg.Storage.Path)
	assert.False(t, cfg.Storage.Crawler)
	assert.Equal(t, "0.0.0.0:9090", cfg.WWW.Root)
	assert.True(t, cfg.WWW.Secure)
	assert.Equal(t, 10*time.Minute, cfg.Auth.FailRetryDelay)
	assert.Equal(t, []string{"alice", "bob", "carol"}, cfg.Auth.Whitelist)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/log/citewatch.log", cfg.Logging.File)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
[storage]
path = postgres://localhost/citewatch
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Storage.Crawler)
	assert.Equal(t, time.Second, cfg.Auth.FailRetryDelay)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Nil(t, cfg.Auth.Whitelist)
}

func TestLoadRejectsMissingStoragePath(t *testing.T) {
	path := writeTempConfig(t, `
[www]
root = 0.0.0.0:8080
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	path := writeTempConfig(t, `
[storage]
path = postgres://localhost/citewatch

[logging]
level = verbose
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestParseDelay(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30", 30 * time.Second},
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1d", 24 * time.Hour},
	}
	for _, tt := range tests {
		got, err := ParseDelay(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseDelayRejectsGarbage(t *testing.T) {
	_, err := ParseDelay("not-a-delay")
	assert.Error(t, err)
}
