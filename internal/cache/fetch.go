package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"gamestore/pkg/logging/logging"
)

// FetchOrPopulate returns the value cached under key, or calls producer,
// caches its JSON encoding for ttl and returns it.
//
// A producer error is returned unchanged and nothing is cached, so the next
// call runs producer again. Concurrent misses on the same key each run
// producer; there is no de-duplication.
func FetchOrPopulate[V any](
	ctx context.Context,
	c Cache,
	key string,
	ttl time.Duration,
	producer func(ctx context.Context) (V, error),
) (V, error) {
	if raw, ok := c.Get(ctx, key); ok {
		var v V
		err := json.Unmarshal(raw, &v)
		if err == nil {
			return v, nil
		}
		logging.L(ctx).Warn("cache_decode_error",
			zap.String("key", key),
			zap.Error(err),
		)
		c.Delete(ctx, key)
	}

	v, err := producer(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		// Value is still good for this caller; it just won't be cached.
		logging.L(ctx).Warn("cache_encode_error",
			zap.String("key", key),
			zap.Error(err),
		)
		return v, nil
	}
	c.Set(ctx, key, raw, ttl)

	return v, nil
}
