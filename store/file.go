package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bridgemark/bmauth/identity"
)

// File is a TokenStore backed by a single JSON file. It is the
// single-device persistence medium: entries survive a process restart
// but live on one machine only.
//
// Every mutation rewrites the file through a temp-file rename, so a
// crash mid-write leaves either the old or the new content, never a
// torn file. A file that fails to parse on load is treated as empty.
type File struct {
	path string

	mu      sync.Mutex
	entries map[string]string
}

// NewFile opens (or creates) the store at path. The parent directory
// must exist.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("store: file path required")
	}
	f := &File{path: path}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

var _ TokenStore = (*File)(nil)

func (f *File) load() error {
	f.entries = make(map[string]string)
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: read %s: %w", f.path, err)
	}
	// A corrupt file reads as empty rather than wedging the client.
	_ = json.Unmarshal(raw, &f.entries)
	if f.entries == nil {
		f.entries = make(map[string]string)
	}
	return nil
}

// flush must be called with f.mu held.
func (f *File) flush() error {
	raw, err := json.Marshal(f.entries)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".bmauth-*")
	if err != nil {
		return fmt.Errorf("store: write %s: %w", f.path, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write %s: %w", f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write %s: %w", f.path, err)
	}
	return nil
}

func (f *File) get(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[key]
}

func (f *File) set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	return f.flush()
}

func (f *File) delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[key]; !ok {
		return nil
	}
	delete(f.entries, key)
	return f.flush()
}

// Access returns the stored access token, or "" when absent.
func (f *File) Access(context.Context) (string, error) { return f.get(KeyAccess), nil }

// SetAccess stores the access token.
func (f *File) SetAccess(_ context.Context, token string) error { return f.set(KeyAccess, token) }

// ClearAccess removes the access token.
func (f *File) ClearAccess(context.Context) error { return f.delete(KeyAccess) }

// Refresh returns the stored refresh token, or "" when absent.
func (f *File) Refresh(context.Context) (string, error) { return f.get(KeyRefresh), nil }

// SetRefresh stores the refresh token.
func (f *File) SetRefresh(_ context.Context, token string) error { return f.set(KeyRefresh, token) }

// ClearRefresh removes the refresh token.
func (f *File) ClearRefresh(context.Context) error { return f.delete(KeyRefresh) }

// User returns the cached profile, or nil when absent or corrupt.
func (f *File) User(context.Context) (*identity.Identity, error) {
	return identity.Decode(f.get(KeyUser)), nil
}

// SetUser caches the profile. A nil identity clears the entry.
func (f *File) SetUser(ctx context.Context, id *identity.Identity) error {
	if id == nil {
		return f.ClearUser(ctx)
	}
	raw, err := encodeUser(id)
	if err != nil {
		return err
	}
	return f.set(KeyUser, raw)
}

// ClearUser removes the cached profile.
func (f *File) ClearUser(context.Context) error { return f.delete(KeyUser) }

// Value returns the entry under key, or "" when absent.
func (f *File) Value(_ context.Context, key string) (string, error) { return f.get(key), nil }

// SetValue stores value under key.
func (f *File) SetValue(_ context.Context, key, value string) error { return f.set(key, value) }

// DeleteValue removes the entry under key. Idempotent.
func (f *File) DeleteValue(_ context.Context, key string) error { return f.delete(key) }

// ClearAll removes every entry. Idempotent.
func (f *File) ClearAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return nil
	}
	f.entries = make(map[string]string)
	return f.flush()
}
