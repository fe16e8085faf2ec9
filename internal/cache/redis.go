package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// durableKeyPrefix marks cache records inside the Redis namespace.
const durableKeyPrefix = "cache_"

// RedisDurable implements DurableStore using Redis.
type RedisDurable struct {
	client *redis.Client
	prefix string
}

type RedisConfig struct {
	Prefix string
}

// NewRedisDurable creates a Redis-backed durable tier.
func NewRedisDurable(client *redis.Client, config RedisConfig) *RedisDurable {
	return &RedisDurable{
		client: client,
		prefix: config.Prefix,
	}
}

// key builds the final Redis key with prefix.
func (d *RedisDurable) key(k string) string {
	if d.prefix == "" {
		return durableKeyPrefix + k
	}
	return d.prefix + ":" + durableKeyPrefix + k
}

// Get retrieves a serialized entry. A missing key is ("", false, nil).
func (d *RedisDurable) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("context error: %w", err)
	}

	res, err := d.client.Get(ctx, d.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}

	return res, true, nil
}

// Set stores a serialized entry. ttl <= 0 stores without expiry.
func (d *RedisDurable) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if ttl < 0 {
		ttl = 0
	}

	if err := d.client.Set(ctx, d.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// Delete removes a key from Redis.
func (d *RedisDurable) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if err := d.client.Del(ctx, d.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Keys lists cache keys in the namespace using SCAN, with the namespace
// stripped.
func (d *RedisDurable) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	ns := d.key("")
	var (
		cursor uint64
		out    []string
	)

	for {
		keys, next, err := d.client.Scan(ctx, cursor, escapeGlob(ns)+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan failed: %w", err)
		}
		for _, k := range keys {
			out = append(out, strings.TrimPrefix(k, ns))
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return out, nil
}

// Ping checks if Redis connection is healthy.
func (d *RedisDurable) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return d.client.Ping(ctx).Err()
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ DurableStore = (*RedisDurable)(nil)
