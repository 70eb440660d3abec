package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memEntry struct {
	key      string
	value    []byte
	expireAt time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxEntries bounds the store; the least recently used entry is evicted
// first.
func WithMaxEntries(n int) MemoryOption {
	return func(m *MemoryStore) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// WithDefaultTTL is used when Set is called with ttl <= 0.
func WithDefaultTTL(ttl time.Duration) MemoryOption {
	return func(m *MemoryStore) {
		if ttl > 0 {
			m.defaultTTL = ttl
		}
	}
}

// WithJanitor sets how often expired entries are swept. Zero disables the
// sweep; expired entries are then only dropped on access.
func WithJanitor(every time.Duration) MemoryOption {
	return func(m *MemoryStore) { m.janitorEvery = every }
}

// MemoryStore is an in-process LRU Store. Values are copied on the way in
// and out.
type MemoryStore struct {
	mu           sync.Mutex
	items        map[string]*list.Element
	order        *list.List // front = most recently used
	maxEntries   int
	defaultTTL   time.Duration
	janitorEvery time.Duration
	now          func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		items:        make(map[string]*list.Element),
		order:        list.New(),
		maxEntries:   1000,
		defaultTTL:   24 * time.Hour,
		janitorEvery: time.Minute,
		now:          time.Now,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.janitorEvery > 0 {
		go m.janitor()
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return nil, ErrMiss
	}
	m.order.MoveToFront(m.items[key])
	return append([]byte(nil), e.value...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, el := range m.items {
		if strings.HasPrefix(key, prefix) {
			m.remove(el)
		}
	}
	return nil
}

func (m *MemoryStore) Lock(_ context.Context, key string, ttl time.Duration) (Unlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.live(key); held {
		return nil, ErrLocked
	}
	token := []byte(uuid.NewString())
	m.put(key, token, ttl)

	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if e, ok := m.live(key); ok && string(e.value) == string(token) {
			m.remove(m.items[key])
		}
		return nil
	}, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len reports the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Close stops the janitor.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

// live returns the entry for key, dropping it when expired. Callers hold mu.
func (m *MemoryStore) live(key string) (*memEntry, bool) {
	el, ok := m.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memEntry)
	if !m.now().Before(e.expireAt) {
		m.remove(el)
		return nil, false
	}
	return e, true
}

func (m *MemoryStore) put(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	expireAt := m.now().Add(ttl)
	if el, ok := m.items[key]; ok {
		e := el.Value.(*memEntry)
		e.value, e.expireAt = value, expireAt
		m.order.MoveToFront(el)
		return
	}
	m.items[key] = m.order.PushFront(&memEntry{key: key, value: value, expireAt: expireAt})
	for m.order.Len() > m.maxEntries {
		m.remove(m.order.Back())
	}
}

func (m *MemoryStore) remove(el *list.Element) {
	m.order.Remove(el)
	delete(m.items, el.Value.(*memEntry).key)
}

func (m *MemoryStore) janitor() {
	t := time.NewTicker(m.janitorEvery)
	defer t.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-t.C:
		}
		m.mu.Lock()
		now := m.now()
		for el := m.order.Back(); el != nil; {
			prev := el.Prev()
			if !now.Before(el.Value.(*memEntry).expireAt) {
				m.remove(el)
			}
			el = prev
		}
		m.mu.Unlock()
	}
}
