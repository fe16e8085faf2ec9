package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Config struct {
	Backend       string // "memory" or "redis"
	Capacity      int
	SweepInterval time.Duration
	Prefix        string
}

// New builds the process-wide cache. The redis backend adds a Redis
// durable tier; anything else runs memory-only.
func New(cfg Config, redisClient *redis.Client, logger *zap.Logger) *Tiered {
	opts := []Option{
		WithCapacity(cfg.Capacity),
		WithLogger(logger),
	}
	if cfg.SweepInterval > 0 {
		opts = append(opts, WithSweepInterval(cfg.SweepInterval))
	}

	var durable DurableStore
	if cfg.Backend == "redis" && redisClient != nil {
		durable = NewRedisDurable(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
		})
	}

	return NewTiered(durable, opts...)
}
