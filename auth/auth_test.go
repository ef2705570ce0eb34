package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]*User)}
}

func (m *memoryStore) CreateUser(u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return ErrUserExists
	}
	cp := *u
	m.users[u.Username] = &cp
	return nil
}

func (m *memoryStore) GetUserByUsername(username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryStore) GetUserByToken(token string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.AuthToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memoryStore) UpdateUser(u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; !ok {
		return ErrUserNotFound
	}
	cp := *u
	m.users[u.Username] = &cp
	return nil
}

func (m *memoryStore) DeleteUser(username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; !ok {
		return false, nil
	}
	delete(m.users, username)
	return true, nil
}

func TestRegisterValidatesUsernameAndPassword(t *testing.T) {
	svc := NewService(newMemoryStore(), nil)

	require.Error(t, svc.Register("Bad1", "longenough"))
	require.Error(t, svc.Register("valid", "no"))
	require.NoError(t, svc.Register("valid", "longenough"))
	assert.ErrorIs(t, svc.Register("valid", "longenough"), ErrUserExists)
}

func TestLoginDoesNotDistinguishMissingUserFromWrongPassword(t *testing.T) {
	svc := NewService(newMemoryStore(), nil)
	require.NoError(t, svc.Register("alice", "correcthorse"))

	_, err := svc.Login("alice", "wrongpassword", "127.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login("nosuchuser", "whatever", "127.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginIssuesSingleActiveToken(t *testing.T) {
	svc := NewService(newMemoryStore(), nil)
	require.NoError(t, svc.Register("alice", "correcthorse"))

	token1, err := svc.Login("alice", "correcthorse", "127.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, token1)

	token2, err := svc.Login("alice", "correcthorse", "127.0.0.1")
	require.NoError(t, err)
	assert.NotEqual(t, token1, token2)

	_, err = svc.UsernameOfToken(token1)
	assert.ErrorIs(t, err, ErrInvalidToken)

	username, err := svc.UsernameOfToken(token2)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestLogoutClearsToken(t *testing.T) {
	svc := NewService(newMemoryStore(), nil)
	require.NoError(t, svc.Register("alice", "correcthorse"))
	token, err := svc.Login("alice", "correcthorse", "127.0.0.1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout("alice"))
	_, err = svc.UsernameOfToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDeleteRequiresCorrectPassword(t *testing.T) {
	svc := NewService(newMemoryStore(), nil)
	require.NoError(t, svc.Register("alice", "correcthorse"))

	assert.ErrorIs(t, svc.Delete("alice", "wrong"), ErrInvalidCredentials)
	require.NoError(t, svc.Delete("alice", "correcthorse"))
	assert.ErrorIs(t, svc.Delete("alice", "correcthorse"), ErrInvalidCredentials)
}

func TestChangePasswordRequiresOldPassword(t *testing.T) {
	svc := NewService(newMemoryStore(), nil)
	require.NoError(t, svc.Register("alice", "correcthorse"))

	assert.ErrorIs(t, svc.ChangePassword("alice", "wrong", "newpassword"), ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword("alice", "correcthorse", "newpassword"))

	_, err := svc.Login("alice", "newpassword", "127.0.0.1")
	assert.NoError(t, err)
}

func TestRateLimiterAllowsOnceThenBlocksUntilDelay(t *testing.T) {
	rl := NewRateLimiter(time.Hour)
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))
}
