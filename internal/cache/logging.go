package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gamestore/internal/metrics"
	"gamestore/pkg/logging/logging"
)

// LoggingCache wraps a Cache with logging + metrics.
type LoggingCache struct {
	inner Cache
}

// NewLoggingCache returns a cache that logs and records metrics.
func NewLoggingCache(inner Cache) Cache {
	return &LoggingCache{inner: inner}
}

func (c *LoggingCache) Get(ctx context.Context, key string) ([]byte, bool) {
	start := time.Now()
	value, ok := c.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	result := "miss"
	if ok {
		result = "hit"
	}
	prefix := keyPrefix(key)
	metrics.CacheRequestsTotal.WithLabelValues(prefix, result).Inc()

	logging.L(ctx).Debug("cache_get",
		zap.String("cache_key", key),
		zap.String("key_prefix", prefix),
		zap.String("cache_result", result), // hit | miss
		zap.Float64("latency_ms", latencyMs),
	)

	return value, ok
}

func (c *LoggingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	start := time.Now()
	c.inner.Set(ctx, key, value, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logging.L(ctx).Debug("cache_set",
		zap.String("cache_key", key),
		zap.String("key_prefix", keyPrefix(key)),
		zap.Int("size_bytes", len(value)),
		zap.Duration("ttl", ttl),
		zap.Float64("latency_ms", latencyMs),
	)
}

func (c *LoggingCache) Delete(ctx context.Context, key string) {
	c.inner.Delete(ctx, key)
	logging.L(ctx).Debug("cache_delete", zap.String("cache_key", key))
}

func (c *LoggingCache) Clear(ctx context.Context, prefix string) {
	c.inner.Clear(ctx, prefix)
	logging.L(ctx).Info("cache_clear", zap.String("key_prefix", prefix))
}

func (c *LoggingCache) Stats() Stats {
	return c.inner.Stats()
}
