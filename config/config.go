// Package config loads the INI configuration file described in spec.md §6:
// the storage/www/auth/logging sections, plus the "delay string" grammar
// (an integer with optional s|m|h|d suffix) those sections use for anything
// expressed as a duration.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage holds the `[storage]` section: the primary database DSN and the
// crawler on/off switch. The reference server's SQLite `path` becomes a
// Postgres connection string here (§11); `crawler=false` puts the process in
// read-only mode, skipping the Scheduler entirely.
type Storage struct {
	Path    string
	Crawler bool
}

// WWW holds the `[www]` section: the HTTP listener configuration.
type WWW struct {
	Root            string
	UnixSocketPath  string
	ChownUnixSocket bool
	Secure          bool
}

// Auth holds the `[auth]` section: the per-address rate-limit delay and the
// optional registration whitelist.
type Auth struct {
	FailRetryDelay time.Duration
	Whitelist      []string
}

// Logging holds the `[logging]` section: the global level, an optional log
// file path, and per-component level overrides.
type Logging struct {
	Level  string
	File   string
	Levels map[string]string
}

// Config is the fully parsed configuration file.
type Config struct {
	Storage Storage
	WWW     WWW
	Auth    Auth
	Logging Logging
}

// Load reads and validates the INI file at path using viper, the way the
// reference CLI loads its own config (cobra flags bound over a viper
// instance), with SetConfigType pinned to "ini" per spec.md §6.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")

	v.SetDefault("storage.crawler", true)
	v.SetDefault("www.root", "0.0.0.0:8080")
	v.SetDefault("www.secure", false)
	v.SetDefault("auth.fail_retry_delay", "1s")
	v.SetDefault("logging.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	retryDelay, err := ParseDelay(v.GetString("auth.fail_retry_delay"))
	if err != nil {
		return nil, fmt.Errorf("config: auth.fail_retry_delay: %w", err)
	}

	cfg := &Config{
		Storage: Storage{
			Path:    v.GetString("storage.path"),
			Crawler: v.GetBool("storage.crawler"),
		},
		WWW: WWW{
			Root:            v.GetString("www.root"),
			UnixSocketPath:  v.GetString("www.unix_socket_path"),
			ChownUnixSocket: v.GetBool("www.chown_unix_socket"),
			Secure:          v.GetBool("www.secure"),
		},
		Auth: Auth{
			FailRetryDelay: retryDelay,
			Whitelist:      splitWhitelist(v.GetString("auth.whitelist")),
		},
		Logging: Logging{
			Level:  v.GetString("logging.level"),
			File:   v.GetString("logging.file"),
			Levels: stringMapSetting(v, "logging.levels"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Storage.Path == "" {
		return fmt.Errorf("config: storage.path is required")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("config: logging.level %q is not a recognized level", cfg.Logging.Level)
	}
	return nil
}

// splitWhitelist parses the `[auth] whitelist` value, a comma-separated list
// of usernames. An empty value means no whitelist (every username allowed).
func splitWhitelist(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// stringMapSetting reads an ini sub-section (e.g. `[logging.levels]`) that
// viper exposes as a nested string map, tolerating the section being absent.
func stringMapSetting(v *viper.Viper, key string) map[string]string {
	raw := v.GetStringMapString(key)
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// ParseDelay parses the spec.md §6 "delay string" grammar: an integer with
// an optional s|m|h|d suffix, bare integer meaning seconds.
func ParseDelay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty delay string")
	}

	unit := time.Second
	numeric := s
	switch s[len(s)-1] {
	case 's':
		unit, numeric = time.Second, s[:len(s)-1]
	case 'm':
		unit, numeric = time.Minute, s[:len(s)-1]
	case 'h':
		unit, numeric = time.Hour, s[:len(s)-1]
	case 'd':
		unit, numeric = 24*time.Hour, s[:len(s)-1]
	}

	n, err := strconv.ParseInt(numeric, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q: %w", s, err)
	}
	return time.Duration(n) * unit, nil
}
