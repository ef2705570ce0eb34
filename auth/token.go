package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// sessionTokenBytes matches the reference server's 15 random bytes of
// session-token entropy (base64-encoded on the wire).
const sessionTokenBytes = 15

// GenerateSessionToken produces a fresh opaque session token. This is the
// only token flavor auth issues: the JWT machinery in this codebase is kept
// narrowly for the takeout download capability, not for sessions.
func GenerateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
