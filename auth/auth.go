package auth

import (
	"fmt"
	"time"
)

// Service is the narrow authentication surface the HTTP façade drives:
// register, login, logout, delete, change password, and token lookup. It
// replaces the reference server's users.py module-level functions with a
// single stateful service wired to a Store and an audit log.
type Service interface {
	Register(username, password string) error
	Login(username, password, remoteAddr string) (token string, err error)
	Logout(username string) error
	Delete(username, password string) error
	ChangePassword(username, oldPassword, newPassword string) error
	UsernameOfToken(token string) (string, error)
}

type service struct {
	store UserStore
	audit AuditLogger
}

// NewService builds an authentication service over the given user store. A
// nil audit logger disables event recording (useful in tests).
func NewService(store UserStore, audit AuditLogger) Service {
	return &service{store: store, audit: audit}
}

// Register creates a new user account. Username and password are validated
// the way the reference server validates them: username must match the
// lowercase-letters pattern and be unused; password must fall within the
// shared length bounds.
func (s *service) Register(username, password string) error {
	if err := ValidateUsername(username); err != nil {
		s.logAudit(username, "register", "", false, err)
		return err
	}
	if _, err := s.store.GetUserByUsername(username); err == nil {
		s.logAudit(username, "register", "", false, ErrUserExists)
		return ErrUserExists
	}
	if err := CheckPasswordLength(password); err != nil {
		s.logAudit(username, "register", "", false, err)
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}

	now := time.Now()
	user := &User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(user); err != nil {
		return fmt.Errorf("auth: create user: %w", err)
	}
	s.logAudit(username, "register", "", true, nil)
	return nil
}

// Login validates credentials and issues a fresh session token, replacing
// any token the user already held — exactly one token is active per user at
// a time. Missing user and wrong password both return ErrInvalidCredentials,
// matching the reference server: a caller can never tell which failed.
func (s *service) Login(username, password, remoteAddr string) (string, error) {
	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		s.logAudit(username, "login", remoteAddr, false, ErrInvalidCredentials)
		return "", ErrInvalidCredentials
	}
	if err := ValidatePassword(password, user.PasswordHash); err != nil {
		s.logAudit(username, "login", remoteAddr, false, ErrInvalidCredentials)
		return "", ErrInvalidCredentials
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return "", fmt.Errorf("auth: generate session token: %w", err)
	}
	user.AuthToken = token
	user.UpdatedAt = time.Now()
	if err := s.store.UpdateUser(user); err != nil {
		return "", fmt.Errorf("auth: update user: %w", err)
	}
	s.logAudit(username, "login", remoteAddr, true, nil)
	return token, nil
}

// Logout clears the user's active session token.
func (s *service) Logout(username string) error {
	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		return ErrUserNotFound
	}
	user.AuthToken = ""
	user.UpdatedAt = time.Now()
	if err := s.store.UpdateUser(user); err != nil {
		return fmt.Errorf("auth: update user: %w", err)
	}
	s.logAudit(username, "logout", "", true, nil)
	return nil
}

// Delete removes a user account after re-verifying their password.
func (s *service) Delete(username, password string) error {
	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		return ErrInvalidCredentials
	}
	if err := ValidatePassword(password, user.PasswordHash); err != nil {
		s.logAudit(username, "delete", "", false, ErrInvalidCredentials)
		return ErrInvalidCredentials
	}
	ok, err := s.store.DeleteUser(username)
	if err != nil {
		return fmt.Errorf("auth: delete user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	s.logAudit(username, "delete", "", true, nil)
	return nil
}

// ChangePassword re-verifies the old password before setting a new one.
func (s *service) ChangePassword(username, oldPassword, newPassword string) error {
	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		return ErrInvalidCredentials
	}
	if err := ValidatePassword(oldPassword, user.PasswordHash); err != nil {
		s.logAudit(username, "change_password", "", false, ErrInvalidCredentials)
		return ErrInvalidCredentials
	}
	if err := CheckPasswordLength(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	if err := s.store.UpdateUser(user); err != nil {
		return fmt.Errorf("auth: update user: %w", err)
	}
	s.logAudit(username, "change_password", "", true, nil)
	return nil
}

// UsernameOfToken resolves an active session token back to its owner.
func (s *service) UsernameOfToken(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	user, err := s.store.GetUserByToken(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	return user.Username, nil
}

func (s *service) logAudit(username, action, remoteAddr string, success bool, cause error) {
	if s.audit == nil {
		return
	}
	entry := &AuditLog{
		Timestamp:  time.Now(),
		Username:   username,
		Action:     action,
		RemoteAddr: remoteAddr,
		Success:    success,
	}
	if cause != nil {
		entry.ErrorMessage = cause.Error()
	}
	_ = s.audit.Log(entry)
}
