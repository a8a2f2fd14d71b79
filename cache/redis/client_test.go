package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) Config {
	t.Helper()
	if testing.Short() || os.Getenv("VKRPG_REDIS_TESTS") != "1" {
		t.Skip("set VKRPG_REDIS_TESTS=1 to run redis integration tests")
	}
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return Config{Addr: addr}
}

func TestRedisCacheLock(t *testing.T) {
	cfg := startRedis(t)
	c, err := NewCache(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := c.SetNX(ctx, "lock:x", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock:x", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := c.DelIfValue(ctx, "lock:x", "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = c.DelIfValue(ctx, "lock:x", "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)

	exists, err := c.Exists(ctx, "lock:x")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisPubSub(t *testing.T) {
	cfg := startRedis(t)
	ps, err := NewPubSub(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "market:events")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "market:events", `{"type":"sold"}`))
	select {
	case msg := <-ch:
		assert.Equal(t, "market:events", msg.Channel)
		assert.Equal(t, `{"type":"sold"}`, msg.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}
