package local_test

import (
	"context"
	"testing"
	"time"

	"github.com/agathamc/regserver/cache/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) *local.LocalCache {
	t.Helper()
	c, err := local.NewCache(local.Config{GCInterval: time.Minute})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestSetGet(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	_, err = c.Get(ctx, "missing")
	assert.Equal(t, local.ErrNotFound, err)
}

func TestTTLExpiry(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	assert.Equal(t, local.ErrNotFound, err)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetNX(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second SetNX on a live key must fail")

	require.NoError(t, c.Del(ctx, "lock"))
	ok, err = c.SetNX(ctx, "lock", "3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetNXAfterExpiry(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "1", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	ok, err = c.SetNX(ctx, "lock", "2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired key behaves as absent")
}

func TestExpire(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	require.NoError(t, c.Expire(ctx, "k", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	assert.Equal(t, local.ErrNotFound, err)

	assert.Equal(t, local.ErrNotFound, c.Expire(ctx, "missing", time.Minute))
}
