package cache

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gamestore/internal/metrics"
)

// Tiered is an in-process TTL cache with a bounded fast tier and an
// optional durable tier for whitelisted key prefixes.
//
// Create one per process with NewTiered and share it; call Close on
// shutdown to stop the sweeper.
type Tiered struct {
	// durableMu serializes durable-tier I/O against fast-tier mutations of
	// the same keys. Lock order: durableMu, then mu.
	durableMu sync.Mutex

	mu        sync.Mutex
	items     map[string]*Entry
	seq       uint64
	hits      uint64
	misses    uint64
	evictions uint64

	// invalidations counts Delete and Clear calls.
	invalidations uint64

	durable DurableStore
	opts    *options
	logger  *zap.Logger

	stopSweep chan struct{}
	closeOnce sync.Once
}

// NewTiered creates a cache. durable may be nil, in which case the cache
// is memory-only.
func NewTiered(durable DurableStore, opts ...Option) *Tiered {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	c := &Tiered{
		items:     make(map[string]*Entry),
		durable:   durable,
		opts:      o,
		logger:    o.logger.Named("cache"),
		stopSweep: make(chan struct{}),
	}

	if o.sweepInterval > 0 {
		go c.sweepLoop()
	}

	return c
}

// Get returns the cached value for key. A fast-tier miss on a durable key
// falls through to the durable tier and promotes the entry on a hit.
func (c *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	now := c.opts.now()

	c.mu.Lock()
	if e, ok := c.items[key]; ok {
		if e.expired(now) {
			delete(c.items, key)
			c.misses++
			c.mu.Unlock()
			c.deleteDurableIfAbsent(ctx, key)
			return nil, false
		}
		c.touchLocked(e, now)
		c.hits++
		v := e.Value
		c.mu.Unlock()
		return v, true
	}
	c.mu.Unlock()

	if !c.durableEligible(key) {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	// Delete and Clear of this key wait here, so a read of the durable tier
	// can never promote a value they already removed.
	c.durableMu.Lock()
	defer c.durableMu.Unlock()

	e, ok := c.loadDurable(ctx, key)
	if ok && e.expired(now) {
		c.deleteDurableLocked(ctx, key)
		ok = false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent Set may have landed while the durable tier was read.
	if cur, exists := c.items[key]; exists && !cur.expired(now) {
		c.touchLocked(cur, now)
		c.hits++
		return cur.Value, true
	}
	if !ok {
		c.misses++
		return nil, false
	}

	c.insertLocked(key, e, now)
	c.hits++
	return e.Value, true
}

// Set stores value under key for ttl. A ttl <= 0 uses the default TTL.
func (c *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.opts.defaultTTL
	}

	// Copy to decouple from caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	now := c.opts.now()
	e := &Entry{
		Value:     valueCopy,
		ExpiresAt: now.Add(ttl),
	}

	c.mu.Lock()
	c.insertLocked(key, e, now)
	// Snapshot under the lock: Get touches e concurrently.
	rec := newDurableRecord(e)
	gen := c.invalidations
	c.mu.Unlock()

	c.storeDurable(ctx, key, e, rec, gen, ttl)
}

// Delete removes key from both tiers. Deleting a missing key is a no-op.
func (c *Tiered) Delete(ctx context.Context, key string) {
	if !c.durableEligible(key) {
		c.mu.Lock()
		delete(c.items, key)
		c.invalidations++
		n := len(c.items)
		c.mu.Unlock()
		metrics.CacheEntries.Set(float64(n))
		return
	}

	c.durableMu.Lock()
	defer c.durableMu.Unlock()

	c.mu.Lock()
	delete(c.items, key)
	c.invalidations++
	n := len(c.items)
	c.mu.Unlock()

	metrics.CacheEntries.Set(float64(n))
	c.deleteDurableLocked(ctx, key)
}

// Clear removes all entries whose key starts with prefix from both tiers.
// An empty prefix removes everything.
func (c *Tiered) Clear(ctx context.Context, prefix string) {
	if c.durable != nil {
		c.durableMu.Lock()
		defer c.durableMu.Unlock()
	}

	c.mu.Lock()
	c.invalidations++
	if prefix == "" {
		c.items = make(map[string]*Entry)
	} else {
		for k := range c.items {
			if strings.HasPrefix(k, prefix) {
				delete(c.items, k)
			}
		}
	}
	n := len(c.items)
	c.mu.Unlock()

	metrics.CacheEntries.Set(float64(n))

	if c.durable == nil {
		return
	}

	keys, err := c.durable.Keys(ctx)
	if err != nil {
		c.logger.Warn("durable tier key listing failed", zap.Error(err))
		return
	}
	for _, k := range keys {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		if !c.durableEligible(k) {
			continue
		}
		if err := c.durable.Delete(ctx, k); err != nil {
			c.logger.Warn("durable tier delete failed",
				zap.String("key", k),
				zap.Error(err),
			)
		}
	}
}

// Stats returns a snapshot of the fast tier.
func (c *Tiered) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		EntryCount:     len(c.items),
		Capacity:       c.opts.capacity,
		Hits:           c.hits,
		Misses:         c.misses,
		Evictions:      c.evictions,
		DurableEnabled: c.durable != nil,
	}
}

// Len returns the number of fast-tier entries.
func (c *Tiered) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Sweep removes every expired fast-tier entry (and its durable copy) and
// returns how many were removed.
func (c *Tiered) Sweep(ctx context.Context) int {
	now := c.opts.now()

	var expired []string
	c.mu.Lock()
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
			expired = append(expired, k)
		}
	}
	n := len(c.items)
	c.mu.Unlock()

	metrics.CacheEntries.Set(float64(n))

	for _, k := range expired {
		c.deleteDurableIfAbsent(ctx, k)
	}
	return len(expired)
}

// Close stops the sweeper. Call this on shutdown or in tests.
func (c *Tiered) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopSweep)
	})
	return nil
}

func (c *Tiered) sweepLoop() {
	ticker := time.NewTicker(c.opts.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.Sweep(context.Background()); n > 0 {
				c.logger.Debug("swept expired entries", zap.Int("removed", n))
			}
		case <-c.stopSweep:
			return
		}
	}
}

// insertLocked stores e under key, evicting first if the fast tier is full
// and key is new. Caller holds c.mu.
func (c *Tiered) insertLocked(key string, e *Entry, now time.Time) {
	// Overwriting a key never grows the tier, so only new keys evict.
	if _, exists := c.items[key]; !exists && len(c.items) >= c.opts.capacity {
		c.evictLocked()
	}
	c.touchLocked(e, now)
	c.items[key] = e
	metrics.CacheEntries.Set(float64(len(c.items)))
}

func (c *Tiered) touchLocked(e *Entry, now time.Time) {
	c.seq++
	e.LastAccessedAt = now
	e.seq = c.seq
}

// evictLocked drops the least recently accessed fifth of the fast tier
// (at least one entry). Evicted entries stay in the durable tier.
func (c *Tiered) evictLocked() {
	type candidate struct {
		key string
		e   *Entry
	}

	all := make([]candidate, 0, len(c.items))
	for k, e := range c.items {
		all = append(all, candidate{key: k, e: e})
	}
	slices.SortFunc(all, func(a, b candidate) int {
		if cmp := a.e.LastAccessedAt.Compare(b.e.LastAccessedAt); cmp != 0 {
			return cmp
		}
		switch {
		case a.e.seq < b.e.seq:
			return -1
		case a.e.seq > b.e.seq:
			return 1
		}
		return 0
	})

	n := int(float64(len(all)) * evictFraction)
	if n < 1 {
		n = 1
	}
	for _, cand := range all[:n] {
		delete(c.items, cand.key)
	}

	c.evictions += uint64(n)
	metrics.CacheEvictionsTotal.Add(float64(n))
}

func (c *Tiered) durableEligible(key string) bool {
	if c.durable == nil {
		return false
	}
	for _, p := range c.opts.durablePrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// loadDurable reads and decodes key from the durable tier. Corrupt
// records are purged and reported as a miss. Caller holds c.durableMu.
func (c *Tiered) loadDurable(ctx context.Context, key string) (*Entry, bool) {
	raw, ok, err := c.durable.Get(ctx, key)
	if err != nil {
		c.logger.Warn("durable tier get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	e, err := decodeEntry(raw)
	if err != nil {
		c.logger.Warn("purging corrupt durable entry", zap.String("key", key), zap.Error(err))
		c.deleteDurableLocked(ctx, key)
		return nil, false
	}
	return e, true
}

// storeDurable writes rec for key unless e was replaced by a newer Set or
// removed by Delete or Clear in the meantime. gen is c.invalidations as
// seen when e was inserted. An entry that was only evicted is still
// written.
func (c *Tiered) storeDurable(ctx context.Context, key string, e *Entry, rec durableRecord, gen uint64, ttl time.Duration) {
	if !c.durableEligible(key) {
		return
	}
	if !json.Valid(rec.Data) {
		c.logger.Debug("non-JSON value kept out of durable tier", zap.String("key", key))
		return
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		c.logger.Warn("durable tier encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if len(raw) >= c.opts.maxDurableSize {
		c.logger.Debug("entry too large for durable tier",
			zap.String("key", key),
			zap.Int("size", len(raw)),
		)
		return
	}

	c.durableMu.Lock()
	defer c.durableMu.Unlock()

	c.mu.Lock()
	cur, exists := c.items[key]
	current := cur == e || (!exists && c.invalidations == gen)
	c.mu.Unlock()
	if !current {
		return
	}

	if err := c.durable.Set(ctx, key, string(raw), ttl); err != nil {
		c.logger.Warn("durable tier set failed", zap.String("key", key), zap.Error(err))
	}
}

// deleteDurableIfAbsent drops the durable copy of key unless a fresh entry
// was set in the fast tier since the caller removed it.
func (c *Tiered) deleteDurableIfAbsent(ctx context.Context, key string) {
	if !c.durableEligible(key) {
		return
	}

	c.durableMu.Lock()
	defer c.durableMu.Unlock()

	c.mu.Lock()
	_, exists := c.items[key]
	c.mu.Unlock()
	if exists {
		return
	}
	c.deleteDurableLocked(ctx, key)
}

// deleteDurableLocked removes key from the durable tier. Caller holds
// c.durableMu.
func (c *Tiered) deleteDurableLocked(ctx context.Context, key string) {
	if err := c.durable.Delete(ctx, key); err != nil {
		c.logger.Warn("durable tier delete failed", zap.String("key", key), zap.Error(err))
	}
}

var _ Cache = (*Tiered)(nil)
