package cache

import (
	"context"
	"errors"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestTiered(t *testing.T, durable DurableStore, clock *fakeClock, opts ...Option) *Tiered {
	t.Helper()
	base := []Option{
		WithClock(clock.Now),
		WithSweepInterval(0),
		WithLogger(zaptest.NewLogger(t)),
	}
	c := NewTiered(durable, append(base, opts...)...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestTiered_TTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestTiered(t, nil, clock)
	ctx := context.Background()

	c.Set(ctx, "games_page:1", []byte(`"hello"`), time.Minute)

	clock.Advance(time.Minute - time.Millisecond)
	got, ok := c.Get(ctx, "games_page:1")
	require.True(t, ok, "expected hit before expiry")
	assert.Equal(t, `"hello"`, string(got))

	clock.Advance(2 * time.Millisecond)
	_, ok = c.Get(ctx, "games_page:1")
	assert.False(t, ok, "expected miss after expiry")
	assert.Equal(t, 0, c.Len(), "expired entry must be removed on read")
}

func TestTiered_SetCopiesValue(t *testing.T) {
	c := newTestTiered(t, nil, newFakeClock())
	ctx := context.Background()

	buf := []byte("abc")
	c.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'z'

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
}

func TestTiered_ZeroTTLUsesDefault(t *testing.T) {
	clock := newFakeClock()
	c := newTestTiered(t, nil, clock, WithDefaultTTL(10*time.Second))
	ctx := context.Background()

	c.Set(ctx, "k", []byte("1"), 0)

	clock.Advance(9 * time.Second)
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestTiered_FalsyValueIsAHit(t *testing.T) {
	c := newTestTiered(t, nil, newFakeClock())
	ctx := context.Background()

	c.Set(ctx, "empty", []byte{}, time.Minute)
	c.Set(ctx, "zero", []byte("0"), time.Minute)

	got, ok := c.Get(ctx, "empty")
	require.True(t, ok)
	assert.Empty(t, got)

	got, ok = c.Get(ctx, "zero")
	require.True(t, ok)
	assert.Equal(t, "0", string(got))
}

func TestTiered_EvictsOldestFifth(t *testing.T) {
	c := newTestTiered(t, nil, newFakeClock(), WithCapacity(100))
	ctx := context.Background()

	for i := 0; i <= 100; i++ {
		c.Set(ctx, fmt.Sprintf("k%03d", i), []byte("v"), time.Hour)
	}

	stats := c.Stats()
	assert.LessOrEqual(t, stats.EntryCount, stats.Capacity)
	assert.Equal(t, 81, stats.EntryCount)
	assert.Equal(t, uint64(20), stats.Evictions)

	for i := 0; i < 20; i++ {
		_, ok := c.Get(ctx, fmt.Sprintf("k%03d", i))
		assert.False(t, ok, "k%03d should have been evicted", i)
	}
	for i := 20; i <= 100; i++ {
		_, ok := c.Get(ctx, fmt.Sprintf("k%03d", i))
		assert.True(t, ok, "k%03d should still be cached", i)
	}
}

func TestTiered_EvictionHonoursAccess(t *testing.T) {
	clock := newFakeClock()
	c := newTestTiered(t, nil, clock, WithCapacity(5))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Hour)
		clock.Advance(time.Second)
	}

	// Touch the oldest so k1 becomes the least recently accessed.
	_, ok := c.Get(ctx, "k0")
	require.True(t, ok)

	c.Set(ctx, "k5", []byte("v"), time.Hour)

	assert.Equal(t, 5, c.Len())
	_, ok = c.Get(ctx, "k1")
	assert.False(t, ok, "k1 should have been evicted")
	_, ok = c.Get(ctx, "k0")
	assert.True(t, ok, "k0 was accessed and should survive")
}

func TestTiered_SmallCapacityStillBounded(t *testing.T) {
	c := newTestTiered(t, nil, newFakeClock(), WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Hour)
		assert.LessOrEqual(t, c.Len(), 2)
	}
}

func TestTiered_OverwriteDoesNotEvict(t *testing.T) {
	c := newTestTiered(t, nil, newFakeClock(), WithCapacity(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Hour)
	}
	c.Set(ctx, "k0", []byte("v2"), time.Hour)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, uint64(0), c.Stats().Evictions)
}

func TestTiered_DeleteMissingKey(t *testing.T) {
	c := newTestTiered(t, NewMemoryDurable(), newFakeClock())
	ctx := context.Background()

	assert.NotPanics(t, func() {
		c.Delete(ctx, "missing")
		c.Delete(ctx, "popularGames_limit:5")
	})
}

func TestTiered_DeleteRemovesBothTiers(t *testing.T) {
	durable := NewMemoryDurable()
	c := newTestTiered(t, durable, newFakeClock())
	ctx := context.Background()

	c.Set(ctx, "gameStats", []byte(`{"total":3}`), time.Hour)
	require.Equal(t, 1, durable.Len())

	c.Delete(ctx, "gameStats")

	assert.Equal(t, 0, durable.Len())
	_, ok := c.Get(ctx, "gameStats")
	assert.False(t, ok)
}

func TestTiered_DurableWhitelist(t *testing.T) {
	durable := NewMemoryDurable()
	c := newTestTiered(t, durable, newFakeClock())
	ctx := context.Background()

	c.Set(ctx, "games_page:1", []byte("[]"), time.Hour)
	c.Set(ctx, "popularGames_limit:5", []byte("[]"), time.Hour)
	c.Set(ctx, "categories_lang:\"en\"", []byte("[]"), time.Hour)

	keys, err := durable.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"categories_lang:\"en\"", "popularGames_limit:5"}, keys)
}

func TestTiered_DurableSizeCeiling(t *testing.T) {
	durable := NewMemoryDurable()
	c := newTestTiered(t, durable, newFakeClock(), WithMaxDurableSize(64))
	ctx := context.Background()

	big := []byte(`"` + strings.Repeat("a", 200) + `"`)
	c.Set(ctx, "gameStats", big, time.Hour)

	assert.Equal(t, 0, durable.Len(), "oversized payload must skip the durable tier")
	_, ok := c.Get(ctx, "gameStats")
	assert.True(t, ok, "oversized payload must still be in the fast tier")
}

func TestTiered_DurableRecordEmbedsJSON(t *testing.T) {
	durable := NewMemoryDurable()
	c := newTestTiered(t, durable, newFakeClock())
	ctx := context.Background()

	c.Set(ctx, "gameStats", []byte(`{"total":3}`), time.Hour)

	raw, ok, err := durable.Get(ctx, "gameStats")
	require.NoError(t, err)
	require.True(t, ok)

	var rec map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	assert.JSONEq(t, `{"total":3}`, string(rec["data"]))
	assert.Contains(t, rec, "expiry")
	assert.Contains(t, rec, "accessTime")
}

func TestTiered_DurableSizeUsesSerializedLength(t *testing.T) {
	durable := NewMemoryDurable()
	c := newTestTiered(t, durable, newFakeClock())
	ctx := context.Background()

	// About 40KB of JSON fits under the default ceiling once stored.
	value := []byte(`"` + strings.Repeat("x", 40000) + `"`)
	c.Set(ctx, "gameStats", value, time.Hour)

	raw, ok, err := durable.Get(ctx, "gameStats")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Less(t, len(raw), DefaultMaxDurableSize)
	assert.Less(t, len(raw), len(value)+100)
}

func TestTiered_NonJSONSkipsDurable(t *testing.T) {
	durable := NewMemoryDurable()
	c := newTestTiered(t, durable, newFakeClock())
	ctx := context.Background()

	c.Set(ctx, "gameStats", []byte("not json"), time.Hour)

	assert.Equal(t, 0, durable.Len())
	got, ok := c.Get(ctx, "gameStats")
	require.True(t, ok)
	assert.Equal(t, "not json", string(got))
}

// gatedDurable blocks Get after reading until release is closed.
type gatedDurable struct {
	*MemoryDurable
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedDurable) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := g.MemoryDurable.Get(ctx, key)
	g.once.Do(func() {
		close(g.reached)
		<-g.release
	})
	return v, ok, err
}

func TestTiered_DeleteDuringDurableReadIsNotUndone(t *testing.T) {
	mem := NewMemoryDurable()
	clock := newFakeClock()
	ctx := context.Background()

	seed := newTestTiered(t, mem, clock)
	seed.Set(ctx, "popularGames_limit:5", []byte(`[1]`), time.Hour)
	require.Equal(t, 1, mem.Len())

	gated := &gatedDurable{
		MemoryDurable: mem,
		reached:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	c := newTestTiered(t, gated, clock)

	getDone := make(chan struct{})
	go func() {
		defer close(getDone)
		c.Get(ctx, "popularGames_limit:5")
	}()
	<-gated.reached

	deleteDone := make(chan struct{})
	go func() {
		defer close(deleteDone)
		c.Delete(ctx, "popularGames_limit:5")
	}()

	close(gated.release)
	<-getDone
	<-deleteDone

	_, ok := c.Get(ctx, "popularGames_limit:5")
	assert.False(t, ok, "deleted entry must not come back")
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, mem.Len())
}

func TestTiered_DeleteWinsOverPendingDurableWrite(t *testing.T) {
	durable := NewMemoryDurable()
	c := newTestTiered(t, durable, newFakeClock())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Set(ctx, "gameStats", []byte(`{"total":1}`), time.Hour)
		}()
		go func() {
			defer wg.Done()
			c.Delete(ctx, "gameStats")
		}()
	}
	wg.Wait()

	// Whatever the interleaving, both tiers agree.
	assert.Equal(t, c.Len(), durable.Len())
}

func TestTiered_RestartPromotesFromDurable(t *testing.T) {
	durable := NewMemoryDurable()
	clock := newFakeClock()
	ctx := context.Background()

	first := newTestTiered(t, durable, clock)
	first.Set(ctx, "popularGames_limit:5", []byte(`[1,2,3]`), 10*time.Minute)
	require.NoError(t, first.Close())

	clock.Advance(5 * time.Minute)

	second := newTestTiered(t, durable, clock)
	require.Equal(t, 0, second.Len())

	got, ok := second.Get(ctx, "popularGames_limit:5")
	require.True(t, ok)
	assert.Equal(t, `[1,2,3]`, string(got))
	assert.Equal(t, 1, second.Len(), "durable hit must be promoted to the fast tier")

	clock.Advance(6 * time.Minute)
	third := newTestTiered(t, durable, clock)
	_, ok = third.Get(ctx, "popularGames_limit:5")
	assert.False(t, ok, "expired durable entry must be a miss")
	assert.Equal(t, 0, durable.Len(), "expired durable entry must be purged")
}

func TestTiered_CorruptDurableEntryIsPurged(t *testing.T) {
	durable := NewMemoryDurable()
	c := newTestTiered(t, durable, newFakeClock())
	ctx := context.Background()

	require.NoError(t, durable.Set(ctx, "gameStats", "{not json", 0))

	_, ok := c.Get(ctx, "gameStats")
	assert.False(t, ok)
	assert.Equal(t, 0, durable.Len())
}

type failingDurable struct{ err error }

func (f failingDurable) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingDurable) Set(context.Context, string, string, time.Duration) error {
	return f.err
}
func (f failingDurable) Delete(context.Context, string) error { return f.err }
func (f failingDurable) Keys(context.Context) ([]string, error) { return nil, f.err }

func TestTiered_DurableFailuresAreNonFatal(t *testing.T) {
	c := newTestTiered(t, failingDurable{err: errors.New("quota exceeded")}, newFakeClock())
	ctx := context.Background()

	c.Set(ctx, "gameStats", []byte(`{}`), time.Hour)
	got, ok := c.Get(ctx, "gameStats")
	require.True(t, ok)
	assert.Equal(t, `{}`, string(got))

	_, ok = c.Get(ctx, "popularGames_limit:1")
	assert.False(t, ok)

	assert.NotPanics(t, func() {
		c.Delete(ctx, "gameStats")
		c.Clear(ctx, "")
	})
}

func TestTiered_Sweep(t *testing.T) {
	durable := NewMemoryDurable()
	clock := newFakeClock()
	c := newTestTiered(t, durable, clock)
	ctx := context.Background()

	c.Set(ctx, "search_q:1", []byte("1"), time.Minute)
	c.Set(ctx, "gameStats", []byte("2"), time.Minute)
	c.Set(ctx, "games_page:1", []byte("3"), time.Hour)

	clock.Advance(2 * time.Minute)

	assert.Equal(t, 2, c.Sweep(ctx))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, durable.Len())
}

func TestTiered_BackgroundSweep(t *testing.T) {
	c := NewTiered(nil, WithSweepInterval(5*time.Millisecond))
	defer c.Close()

	c.Set(context.Background(), "k", []byte("v"), time.Millisecond)

	require.Eventually(t, func() bool { return c.Len() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestTiered_Clear(t *testing.T) {
	durable := NewMemoryDurable()
	c := newTestTiered(t, durable, newFakeClock())
	ctx := context.Background()

	c.Set(ctx, "gameDetail_id:1", []byte("1"), time.Hour)
	c.Set(ctx, "gameDetail_id:2", []byte("2"), time.Hour)
	c.Set(ctx, "popularGames_limit:5", []byte("3"), time.Hour)
	c.Set(ctx, "gameStats", []byte("4"), time.Hour)

	c.Clear(ctx, "gameDetail")
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, durable.Len())

	c.Clear(ctx, "popularGames")
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, durable.Len())

	c.Clear(ctx, "")
	assert.Equal(t, 0, c.Stats().EntryCount)
	assert.Equal(t, 0, durable.Len())
}

func TestTiered_ConcurrentAccess(t *testing.T) {
	c := NewTiered(NewMemoryDurable(), WithCapacity(50), WithSweepInterval(time.Millisecond))
	defer c.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("popularGames_%d_%d", g, i%40)
				c.Set(ctx, key, []byte("v"), time.Millisecond*time.Duration(i%5+1))
				c.Get(ctx, key)
				if i%17 == 0 {
					c.Delete(ctx, key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}

func TestTiered_SameKeyConcurrentSetGet(t *testing.T) {
	c := NewTiered(NewMemoryDurable(), WithSweepInterval(0))
	defer c.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				c.Set(ctx, "gameStats", []byte(fmt.Sprintf(`{"total":%d}`, g)), time.Minute)
				got, ok := c.Get(ctx, "gameStats")
				if ok && !json.Valid(got) {
					t.Errorf("corrupt value %q", got)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	_, ok := c.Get(ctx, "gameStats")
	assert.True(t, ok)
}

func TestTiered_Stats(t *testing.T) {
	c := newTestTiered(t, nil, newFakeClock(), WithCapacity(10))
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Hour)
	c.Get(ctx, "a")
	c.Get(ctx, "b")

	stats := c.Stats()
	assert.Equal(t, 1, stats.EntryCount)
	assert.Equal(t, 10, stats.Capacity)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.False(t, stats.DurableEnabled)
}
