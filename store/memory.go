package store

import (
	"context"
	"sync"

	"github.com/bridgemark/bmauth/identity"
)

// Memory is an in-process TokenStore. It is the default store when no
// other medium is configured, and the fixture of choice in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

var _ TokenStore = (*Memory)(nil)

func (m *Memory) get(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[key]
}

func (m *Memory) set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

func (m *Memory) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Access returns the stored access token, or "" when absent.
func (m *Memory) Access(context.Context) (string, error) { return m.get(KeyAccess), nil }

// SetAccess stores the access token.
func (m *Memory) SetAccess(_ context.Context, token string) error {
	m.set(KeyAccess, token)
	return nil
}

// ClearAccess removes the access token.
func (m *Memory) ClearAccess(context.Context) error {
	m.delete(KeyAccess)
	return nil
}

// Refresh returns the stored refresh token, or "" when absent.
func (m *Memory) Refresh(context.Context) (string, error) { return m.get(KeyRefresh), nil }

// SetRefresh stores the refresh token.
func (m *Memory) SetRefresh(_ context.Context, token string) error {
	m.set(KeyRefresh, token)
	return nil
}

// ClearRefresh removes the refresh token.
func (m *Memory) ClearRefresh(context.Context) error {
	m.delete(KeyRefresh)
	return nil
}

// User returns the cached profile, or nil when absent or corrupt.
func (m *Memory) User(context.Context) (*identity.Identity, error) {
	return identity.Decode(m.get(KeyUser)), nil
}

// SetUser caches the profile. A nil identity clears the entry.
func (m *Memory) SetUser(ctx context.Context, id *identity.Identity) error {
	if id == nil {
		return m.ClearUser(ctx)
	}
	raw, err := encodeUser(id)
	if err != nil {
		return err
	}
	m.set(KeyUser, raw)
	return nil
}

// ClearUser removes the cached profile.
func (m *Memory) ClearUser(context.Context) error {
	m.delete(KeyUser)
	return nil
}

// Value returns the entry under key, or "" when absent.
func (m *Memory) Value(_ context.Context, key string) (string, error) { return m.get(key), nil }

// SetValue stores value under key.
func (m *Memory) SetValue(_ context.Context, key, value string) error {
	m.set(key, value)
	return nil
}

// DeleteValue removes the entry under key. Idempotent.
func (m *Memory) DeleteValue(_ context.Context, key string) error {
	m.delete(key)
	return nil
}

// ClearAll removes every entry. Idempotent.
func (m *Memory) ClearAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]string)
	return nil
}
