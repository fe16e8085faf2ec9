package cache

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultCapacity       = 100
	DefaultTTL            = 5 * time.Minute
	DefaultSweepInterval  = 5 * time.Minute
	DefaultMaxDurableSize = 50000
	evictFraction         = 0.2
)

// DefaultDurablePrefixes are the key prefixes persisted to the durable tier.
var DefaultDurablePrefixes = []string{"popularGames", "categories", "gameStats"}

// Option configures a Tiered cache.
type Option func(*options)

type options struct {
	capacity        int
	defaultTTL      time.Duration
	sweepInterval   time.Duration
	maxDurableSize  int
	durablePrefixes []string
	logger          *zap.Logger
	now             func() time.Time
}

func defaultOptions() *options {
	return &options{
		capacity:        DefaultCapacity,
		defaultTTL:      DefaultTTL,
		sweepInterval:   DefaultSweepInterval,
		maxDurableSize:  DefaultMaxDurableSize,
		durablePrefixes: DefaultDurablePrefixes,
		logger:          zap.NewNop(),
		now:             time.Now,
	}
}

// WithCapacity bounds the number of fast-tier entries.
// Values below 1 keep the default.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithDefaultTTL sets the TTL used when Set is called with ttl <= 0.
func WithDefaultTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.defaultTTL = d
		}
	}
}

// WithSweepInterval sets how often expired fast-tier entries are removed.
// Zero disables the background sweeper.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		o.sweepInterval = d
	}
}

// WithMaxDurableSize sets the serialized-size ceiling (bytes, exclusive)
// for entries written to the durable tier.
func WithMaxDurableSize(n int) Option {
	return func(o *options) {
		o.maxDurableSize = n
	}
}

// WithDurablePrefixes replaces the durable whitelist.
func WithDurablePrefixes(prefixes ...string) Option {
	return func(o *options) {
		o.durablePrefixes = prefixes
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
