package cache

import (
	"context"
	"time"
)

// LayeredStore keeps a small in-process LRU (L1) in front of Redis (L2).
// Writes go through to Redis first. Locks live in Redis only so they hold
// across replicas.
type LayeredStore struct {
	l1    *MemoryStore
	l2    *RedisStore
	l1TTL time.Duration
}

var _ Store = (*LayeredStore)(nil)

// NewLayeredStore puts an LRU of l1Size entries in front of l2. Values read
// from Redis stay in L1 for at most l1TTL.
func NewLayeredStore(l2 *RedisStore, l1Size int, l1TTL time.Duration) *LayeredStore {
	if l1TTL <= 0 {
		l1TTL = 5 * time.Minute
	}
	return &LayeredStore{
		l1:    NewMemoryStore(WithMaxEntries(l1Size), WithDefaultTTL(l1TTL)),
		l2:    l2,
		l1TTL: l1TTL,
	}
}

func (s *LayeredStore) Get(ctx context.Context, key string) ([]byte, error) {
	if v, err := s.l1.Get(ctx, key); err == nil {
		return v, nil
	}
	v, err := s.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	ttl := s.l1TTL
	if rest := s.l2.TTL(ctx, key); rest > 0 {
		ttl = min(ttl, rest)
	}
	_ = s.l1.Set(ctx, key, v, ttl)
	return v, nil
}

func (s *LayeredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	l1 := s.l1TTL
	if ttl > 0 {
		l1 = min(l1, ttl)
	}
	return s.l1.Set(ctx, key, value, l1)
}

func (s *LayeredStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	_ = s.l1.DeleteByPrefix(ctx, prefix)
	return s.l2.DeleteByPrefix(ctx, prefix)
}

func (s *LayeredStore) Lock(ctx context.Context, key string, ttl time.Duration) (Unlock, error) {
	return s.l2.Lock(ctx, key, ttl)
}

func (s *LayeredStore) Ping(ctx context.Context) error {
	return s.l2.Ping(ctx)
}

func (s *LayeredStore) Close() error {
	_ = s.l1.Close()
	return s.l2.Close()
}
