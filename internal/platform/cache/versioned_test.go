package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string `json:"name"`
}

func newTestCache(t *testing.T) (*Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "catalog", time.Minute), mr
}

func TestFetchJSONCachesLoaderResult(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	key, err := c.Key(ctx, "daily", "4")
	require.NoError(t, err)
	assert.Equal(t, "catalog:daily:4:v1", key)

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Name: "Milanesa"}, nil
	}
	var first, second payload
	require.NoError(t, c.FetchJSON(ctx, key, &first, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &second, loader))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "Milanesa", second.Name)
}

func TestBumpRotatesKeys(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	before, err := c.Key(ctx, "snapshot")
	require.NoError(t, err)
	ver, err := c.Bump(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ver)
	after, err := c.Key(ctx, "snapshot")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestFetchJSONPropagatesLoaderError(t *testing.T) {
	c, _ := newTestCache(t)
	boom := errors.New("boom")
	var dst payload
	err := c.FetchJSON(context.Background(), "catalog:x", &dst, func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestFetchJSONDegradesWhenRedisIsDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	var dst payload
	err := c.FetchJSON(context.Background(), "catalog:x", &dst, func(context.Context) (any, error) {
		return payload{Name: "Tarta de jamón"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Tarta de jamón", dst.Name)
}

func TestNilCacheCallsLoader(t *testing.T) {
	var c *Versioned
	key, err := c.Key(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, ":a:b", key)

	var dst payload
	require.NoError(t, c.FetchJSON(context.Background(), key, &dst, func(context.Context) (any, error) {
		return payload{Name: "ok"}, nil
	}))
	assert.Equal(t, "ok", dst.Name)
}

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("hunter2")

	_, err := New(context.Background(), Options{Addr: mr.Addr()})
	require.Error(t, err)

	client, err := New(context.Background(), Options{Addr: mr.Addr(), Password: "hunter2"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}
