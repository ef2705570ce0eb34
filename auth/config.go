package auth

import "time"

// Config represents authentication service configuration, matching the
// `[auth]` section of the INI config file (spec.md §6): a retry delay
// applied per source address after any request, and an optional username
// whitelist.
type Config struct {
	FailRetryDelay time.Duration
	Whitelist      []string // empty means no whitelist (everyone allowed)

	CookieSecure   bool
	CookieHTTPOnly bool
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		FailRetryDelay: time.Second,
		Whitelist:      nil,
		CookieSecure:   true,
		CookieHTTPOnly: true,
	}
}

// IsWhitelisted reports whether username is allowed to authenticate. An
// empty whitelist allows everyone.
func (c *Config) IsWhitelisted(username string) bool {
	if len(c.Whitelist) == 0 {
		return true
	}
	for _, w := range c.Whitelist {
		if w == username {
			return true
		}
	}
	return false
}
