package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisDurable) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisDurable(client, RedisConfig{Prefix: "gamestore"})
}

func TestRedisDurable_SetGetDelete(t *testing.T) {
	mr, d := setupTestRedis(t)
	ctx := context.Background()

	_, ok, err := d.Get(ctx, "gameStats")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Set(ctx, "gameStats", `{"data":{}}`, time.Minute))
	assert.True(t, mr.Exists("gamestore:cache_gameStats"))
	assert.Equal(t, time.Minute, mr.TTL("gamestore:cache_gameStats"))

	got, ok, err := d.Get(ctx, "gameStats")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"data":{}}`, got)

	require.NoError(t, d.Delete(ctx, "gameStats"))
	require.NoError(t, d.Delete(ctx, "gameStats"))
	assert.False(t, mr.Exists("gamestore:cache_gameStats"))
}

func TestRedisDurable_Keys(t *testing.T) {
	mr, d := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "popularGames_limit:5", "x", time.Minute))
	require.NoError(t, d.Set(ctx, "gameStats", "y", time.Minute))
	require.NoError(t, mr.Set("unrelated", "z"))

	keys, err := d.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"popularGames_limit:5", "gameStats"}, keys)
}

func TestRedisDurable_KeysWithGlobPrefix(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	d := NewRedisDurable(client, RedisConfig{Prefix: "app[1]"})
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "gameStats", "x", time.Minute))
	// Matches the prefix only when "[1]" is read as a character class.
	require.NoError(t, mr.Set("app1:cache_other", "z"))

	keys, err := d.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gameStats"}, keys)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]e\\f`, escapeGlob(`a*b?c[d]e\f`))
	assert.Equal(t, "gamestore:cache_", escapeGlob("gamestore:cache_"))
}

func TestRedisDurable_ContextCancelled(t *testing.T) {
	_, d := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := d.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, d.Set(ctx, "k", "v", time.Minute))
}

func TestTiered_WithRedisDurable(t *testing.T) {
	mr, d := setupTestRedis(t)
	clock := newFakeClock()
	ctx := context.Background()

	first := newTestTiered(t, d, clock)
	first.Set(ctx, "popularGames_limit:5", []byte(`[{"id":1}]`), 10*time.Minute)
	first.Set(ctx, "games_page:1", []byte(`[]`), 10*time.Minute)

	assert.True(t, mr.Exists("gamestore:cache_popularGames_limit:5"))
	assert.False(t, mr.Exists("gamestore:cache_games_page:1"))

	second := newTestTiered(t, d, clock)
	got, ok := second.Get(ctx, "popularGames_limit:5")
	require.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, string(got))
	assert.Equal(t, 1, second.Len())

	_, ok = second.Get(ctx, "games_page:1")
	assert.False(t, ok)

	second.Clear(ctx, "")
	assert.False(t, mr.Exists("gamestore:cache_popularGames_limit:5"))
}

func TestTiered_RedisOutageFallsBackToMemory(t *testing.T) {
	mr, d := setupTestRedis(t)
	c := newTestTiered(t, d, newFakeClock())
	ctx := context.Background()

	mr.Close()

	c.Set(ctx, "gameStats", []byte(`{"total":1}`), time.Minute)
	got, ok := c.Get(ctx, "gameStats")
	require.True(t, ok)
	assert.Equal(t, `{"total":1}`, string(got))
}

func TestNew_Factory(t *testing.T) {
	mr, _ := setupTestRedis(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mem := New(Config{Backend: "memory", Capacity: 10}, nil, nil)
	defer mem.Close()
	assert.False(t, mem.Stats().DurableEnabled)
	assert.Equal(t, 10, mem.Stats().Capacity)

	red := New(Config{Backend: "redis", Prefix: "gs"}, client, nil)
	defer red.Close()
	assert.True(t, red.Stats().DurableEnabled)
	assert.Equal(t, DefaultCapacity, red.Stats().Capacity)
}
