package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X int     `json:"x"`
	Y float64 `json:"y"`
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestCache(t *testing.T, opts ...MemoryOption) (*MemoryCache, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(append([]MemoryOption{WithMemoryClock(clk.now)}, opts...)...)
	t.Cleanup(func() { _ = mc.Close() })
	return mc, clk
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	mc, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "p", point{X: 1, Y: 2.5}, time.Minute))
	var got point
	require.NoError(t, mc.Get(ctx, "p", &got))
	assert.Equal(t, point{X: 1, Y: 2.5}, got)

	require.NoError(t, mc.Set(ctx, "s", "raw", time.Minute))
	var s string
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "raw", s)

	err := mc.Get(ctx, "missing", &s)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc, clk := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "short", "1", time.Minute))
	require.NoError(t, mc.Set(ctx, "forever", "2", 0))

	clk.t = clk.t.Add(time.Minute)
	var s string
	assert.ErrorIs(t, mc.Get(ctx, "short", &s), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "forever", &s))
	assert.Equal(t, "2", s)
	assert.Equal(t, 1, mc.Len())
}

func TestMemoryCacheMSetAndTypedMGet(t *testing.T) {
	mc, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mc.MSet(ctx, map[string]interface{}{
		"a": point{X: 1},
		"b": point{X: 2},
		"c": "not json",
	}, time.Minute))

	got, err := MGetTyped[point](ctx, mc, "a", "b", "c", "d")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, got["b"].X)

	require.NoError(t, mc.Delete(ctx, "a"))
	raw, err := mc.MGet(ctx, "a", "b")
	require.NoError(t, err)
	assert.Len(t, raw, 1)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc, clk := newTestCache(t, WithMemoryMaxSize(2))
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	clk.t = clk.t.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	clk.t = clk.t.Add(time.Second)

	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	clk.t = clk.t.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	got, err := mc.MGet(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "c": []byte("3")}, got)
}

func TestMemoryCachePingAfterClose(t *testing.T) {
	mc := NewMemoryCache()
	require.NoError(t, mc.Ping(context.Background()))
	require.NoError(t, mc.Close())
	assert.ErrorIs(t, mc.Ping(context.Background()), ErrClosed)
	assert.Equal(t, "weights:src-1", Key("weights", "src-1"))
}
