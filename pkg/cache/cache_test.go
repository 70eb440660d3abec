package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Code string  `json:"code"`
	MAE  float64 `json:"mae"`
}

func newTestStore(opts ...MemoryOption) (*MemoryStore, *time.Time) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryStore(append([]MemoryOption{WithJanitor(0)}, opts...)...)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMemoryStore_JSONHelpers(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestStore()
	defer m.Close()

	require.NoError(t, SetJSON(ctx, m, "report:B", report{Code: "B", MAE: 1.25}, time.Minute))
	got, err := GetJSON[report](ctx, m, "report:B")
	require.NoError(t, err)
	assert.Equal(t, report{Code: "B", MAE: 1.25}, got)

	_, err = GetJSON[report](ctx, m, "report:none")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestStore()
	defer m.Close()

	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in, time.Minute))
	in[0] = 'x'

	out, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))
	out[1] = 'y'

	again, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	m, now := newTestStore()
	defer m.Close()

	require.NoError(t, m.Set(ctx, "short", []byte("v"), time.Second))
	*now = now.Add(999 * time.Millisecond)
	_, err := m.Get(ctx, "short")
	require.NoError(t, err)

	*now = now.Add(time.Millisecond)
	_, err = m.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryStore_LRUEviction(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestStore(WithMaxEntries(2))
	defer m.Close()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Minute))
	_, err := m.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, "c", []byte("3"), time.Minute))

	_, err = m.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, 2, m.Len())
}

func TestMemoryStore_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestStore()
	defer m.Close()

	for _, k := range []string{"report:a", "report:b", "lock:report:a"} {
		require.NoError(t, m.Set(ctx, k, []byte("x"), time.Minute))
	}
	require.NoError(t, m.DeleteByPrefix(ctx, "report:"))

	_, err := m.Get(ctx, "report:a")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "lock:report:a")
	assert.NoError(t, err)
}

func TestMemoryStore_Lock(t *testing.T) {
	ctx := context.Background()
	m, now := newTestStore()
	defer m.Close()

	unlock, err := m.Lock(ctx, "lock:B", time.Minute)
	require.NoError(t, err)
	_, err = m.Lock(ctx, "lock:B", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, unlock(ctx))
	second, err := m.Lock(ctx, "lock:B", time.Minute)
	require.NoError(t, err)

	// A stale unlock from the first holder must not free the second lock.
	require.NoError(t, unlock(ctx))
	_, err = m.Lock(ctx, "lock:B", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	*now = now.Add(time.Minute)
	third, err := m.Lock(ctx, "lock:B", time.Minute)
	require.NoError(t, err, "expired lock can be taken again")
	require.NoError(t, second(ctx))
	_, err = m.Lock(ctx, "lock:B", time.Minute)
	assert.ErrorIs(t, err, ErrLocked, "expired holder cannot release the new lock")
	require.NoError(t, third(ctx))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "report:B:7:0.9", Key("report", "B", 7, 0.9))
	assert.Equal(t, "", Key())
	assert.Equal(t, Digest("x"), Digest("x"))
	assert.NotEqual(t, Digest("x"), Digest("y"))
	assert.Len(t, Digest("x"), 24)
}
