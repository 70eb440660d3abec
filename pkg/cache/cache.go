package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMiss is returned by Get when the key is absent or expired.
	ErrMiss = errors.New("cache: miss")
	// ErrLocked is returned by Lock when another holder owns the key.
	ErrLocked = errors.New("cache: locked")
)

// Store is a byte-oriented key/value store with expiry and advisory locks.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeleteByPrefix removes every key that starts with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error
	// Lock takes key for ttl. The returned func releases it only while the
	// caller still owns it.
	Lock(ctx context.Context, key string, ttl time.Duration) (Unlock, error)
	Ping(ctx context.Context) error
	Close() error
}

// Unlock releases a lock taken with Store.Lock.
type Unlock func(ctx context.Context) error

// GetJSON reads key and decodes it into a new T.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var out T
	data, err := s.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}
