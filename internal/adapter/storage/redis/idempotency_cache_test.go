package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestIdempotencyCache_ClaimThenSet(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "alice:roll-001"
	value := []byte(`{"status":202,"body":{"state":"ROLLING"}}`)

	claimed, err := cache.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	// In flight: no response yet and a second claim fails
	result, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, result)

	claimed, err = cache.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, cache.Set(ctx, key, value, 10*time.Minute))

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)

	claimed, err = cache.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed, "completed keys stay claimed")
}

func TestIdempotencyCache_Release(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "alice:roll-002"
	_, err := cache.Claim(ctx, key, time.Minute)
	require.NoError(t, err)

	require.NoError(t, cache.Release(ctx, key))

	claimed, err := cache.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed, "released keys can be claimed again")
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "alice:roll-003"
	require.NoError(t, cache.Set(ctx, key, []byte(`{"data":"test"}`), 1*time.Second))

	// Fast-forward time in miniredis
	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}

func TestIdempotencyCache_KeysAreScopedByCaller(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	ok, err := cache.Claim(ctx, "alice:same-key", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.Claim(ctx, "bob:same-key", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
