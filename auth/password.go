package auth

import (
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing.
	BcryptCost = 10

	// MinPasswordLength and MaxDetailsLength bound every user-supplied
	// credential field the same way across username, password and profile
	// values.
	MinPasswordLength = 5
	MaxDetailsLength  = 128
)

// usernameRe restricts usernames to lowercase letters only, matching the
// reference server's registration check.
var usernameRe = regexp.MustCompile(`^[a-z]+$`)

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ValidatePassword checks if a password matches the hash.
func ValidatePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// CheckPasswordLength enforces the password length bounds; this system has
// no complexity requirement beyond length.
func CheckPasswordLength(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxDetailsLength {
		return ErrPasswordTooLong
	}
	return nil
}

// ValidateUsername validates username format: non-empty, lowercase letters
// only, and within the shared details-length bound.
func ValidateUsername(username string) error {
	if username == "" || len(username) > MaxDetailsLength {
		return ErrInvalidUsername
	}
	if !usernameRe.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}
