package local

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *LocalCache {
	t.Helper()
	c, err := NewCache(Config{GCInterval: time.Minute})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestGetSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "session:abc", "42", 0))
	v, err := c.Get(ctx, "session:abc")
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestGetMissing(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	ok, _ := c.Exists(ctx, "k")
	assert.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDel(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	require.NoError(t, c.Del(ctx, "a", "b", "missing"))

	ok, _ := c.Exists(ctx, "a")
	assert.False(t, ok)
	ok, _ = c.Exists(ctx, "b")
	assert.False(t, ok)
}

func TestSetNX(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock:market:listing:1", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock:market:listing:1", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, _ := c.Get(ctx, "lock:market:listing:1")
	assert.Equal(t, "owner-a", v)
}

func TestSetNXAfterExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok, _ := c.SetNX(ctx, "lock", "a", 10*time.Millisecond)
	require.True(t, ok)
	time.Sleep(25 * time.Millisecond)

	ok, _ = c.SetNX(ctx, "lock", "b", time.Minute)
	assert.True(t, ok)
}

func TestDelIfValue(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "lock", "owner-a", 0))

	deleted, err := c.DelIfValue(ctx, "lock", "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = c.DelIfValue(ctx, "lock", "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)

	ok, _ := c.Exists(ctx, "lock")
	assert.False(t, ok)
}

func TestSetNXConcurrent(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := c.SetNX(ctx, "contended", "x", time.Minute); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestGCRemovesExpired(t *testing.T) {
	c, err := NewCache(Config{GCInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "gone", "v", 5*time.Millisecond))
	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, present := c.kv["gone"]
		return !present
	}, time.Second, 10*time.Millisecond)
}
