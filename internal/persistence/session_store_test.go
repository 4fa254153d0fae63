package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, stores SessionStores) {
	t.Helper()
	ctx := context.Background()

	a := stores.Open("session-a")
	b := stores.Open("session-b")

	_, ok, err := a.Get(ctx, "userId")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Set(ctx, "userId", "42"))
	require.NoError(t, a.Set(ctx, "userStatus", "present"))
	require.NoError(t, b.Set(ctx, "userId", "99"))

	v, ok, err := a.Get(ctx, "userId")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	require.NoError(t, a.Set(ctx, "userStatus", "absent"))
	v, _, _ = stores.Open("session-a").Get(ctx, "userStatus")
	assert.Equal(t, "absent", v)

	require.NoError(t, a.Delete(ctx, "userStatus"))
	_, ok, _ = a.Get(ctx, "userStatus")
	assert.False(t, ok)

	require.NoError(t, a.Clear(ctx))
	_, ok, _ = a.Get(ctx, "userId")
	assert.False(t, ok)

	v, ok, _ = b.Get(ctx, "userId")
	assert.True(t, ok)
	assert.Equal(t, "99", v)
}

func TestMemoryStores(t *testing.T) {
	exerciseStore(t, NewMemoryStores())
}

func TestRedisStores(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exerciseStore(t, NewRedisStores(client, time.Hour))
}

func TestRedisStores_SlidingTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStores(client, time.Minute).Open("s1")
	require.NoError(t, store.Set(context.Background(), "isMuted", "true"))
	assert.Equal(t, time.Minute, mr.TTL(sessionKeyPrefix+"s1"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := store.Get(context.Background(), "isMuted")
	require.NoError(t, err)
	assert.False(t, ok)
}
