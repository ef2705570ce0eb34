package auth

import "time"

// User is the account record backing a single crawled identity: a username,
// a bcrypt password hash and salt, and an optional active session token.
// This mirrors the reference system's single-table user model — no roles,
// no email, no JSON-LD envelope, one active token per account.
type User struct {
	Username     string // unique, lowercase a-z per ValidateUsername
	PasswordHash string // bcrypt hash, never serialized to clients
	Salt         string // persisted with the row; Register leaves it empty, as the bcrypt hash embeds its own salt
	AuthToken    string // opaque session token; empty when logged out

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasActiveToken reports whether the user currently holds a live session token.
func (u *User) HasActiveToken() bool {
	return u.AuthToken != ""
}
