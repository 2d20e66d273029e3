package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bridgemark/bmauth/identity"
	"github.com/redis/go-redis/v9"
)

// Redis is a TokenStore backed by a single Redis hash. All entries for
// one installation live under one key ("<prefix>:session"), so ClearAll
// is a single DEL and can never leave a partial state behind.
type Redis struct {
	client redis.UniversalClient
	key    string
}

// NewRedis returns a Redis-backed store. prefix namespaces the hash key
// so several installations can share one database; it defaults to "bm".
func NewRedis(client redis.UniversalClient, prefix string) (*Redis, error) {
	if client == nil {
		return nil, errors.New("store: redis client required")
	}
	if prefix == "" {
		prefix = "bm"
	}
	return &Redis{client: client, key: prefix + ":session"}, nil
}

var _ TokenStore = (*Redis)(nil)

func (r *Redis) get(ctx context.Context, field string) (string, error) {
	val, err := r.client.HGet(ctx, r.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: redis get %s: %w", field, err)
	}
	return val, nil
}

func (r *Redis) set(ctx context.Context, field, value string) error {
	if err := r.client.HSet(ctx, r.key, field, value).Err(); err != nil {
		return fmt.Errorf("store: redis set %s: %w", field, err)
	}
	return nil
}

func (r *Redis) delete(ctx context.Context, field string) error {
	if err := r.client.HDel(ctx, r.key, field).Err(); err != nil {
		return fmt.Errorf("store: redis del %s: %w", field, err)
	}
	return nil
}

// Access returns the stored access token, or "" when absent.
func (r *Redis) Access(ctx context.Context) (string, error) { return r.get(ctx, KeyAccess) }

// SetAccess stores the access token.
func (r *Redis) SetAccess(ctx context.Context, token string) error {
	return r.set(ctx, KeyAccess, token)
}

// ClearAccess removes the access token.
func (r *Redis) ClearAccess(ctx context.Context) error { return r.delete(ctx, KeyAccess) }

// Refresh returns the stored refresh token, or "" when absent.
func (r *Redis) Refresh(ctx context.Context) (string, error) { return r.get(ctx, KeyRefresh) }

// SetRefresh stores the refresh token.
func (r *Redis) SetRefresh(ctx context.Context, token string) error {
	return r.set(ctx, KeyRefresh, token)
}

// ClearRefresh removes the refresh token.
func (r *Redis) ClearRefresh(ctx context.Context) error { return r.delete(ctx, KeyRefresh) }

// User returns the cached profile, or nil when absent or corrupt.
func (r *Redis) User(ctx context.Context) (*identity.Identity, error) {
	raw, err := r.get(ctx, KeyUser)
	if err != nil {
		return nil, err
	}
	return identity.Decode(raw), nil
}

// SetUser caches the profile. A nil identity clears the entry.
func (r *Redis) SetUser(ctx context.Context, id *identity.Identity) error {
	if id == nil {
		return r.ClearUser(ctx)
	}
	raw, err := encodeUser(id)
	if err != nil {
		return err
	}
	return r.set(ctx, KeyUser, raw)
}

// ClearUser removes the cached profile.
func (r *Redis) ClearUser(ctx context.Context) error { return r.delete(ctx, KeyUser) }

// Value returns the entry under key, or "" when absent.
func (r *Redis) Value(ctx context.Context, key string) (string, error) { return r.get(ctx, key) }

// SetValue stores value under key.
func (r *Redis) SetValue(ctx context.Context, key, value string) error {
	return r.set(ctx, key, value)
}

// DeleteValue removes the entry under key. Idempotent.
func (r *Redis) DeleteValue(ctx context.Context, key string) error { return r.delete(ctx, key) }

// ClearAll removes every entry. Idempotent.
func (r *Redis) ClearAll(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("store: redis clear: %w", err)
	}
	return nil
}
