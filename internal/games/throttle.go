package games

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// throttle admits one event per key per interval.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// pruneThreshold bounds the visitor map; idle visitors are dropped once it
// is exceeded.
const pruneThreshold = 10000

func newThrottle(interval time.Duration) *throttle {
	return &throttle{
		interval: interval,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

func (t *throttle) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	v, ok := t.visitors[key]
	if !ok {
		if len(t.visitors) >= pruneThreshold {
			t.pruneLocked(now)
		}
		v = &visitor{limiter: rate.NewLimiter(rate.Every(t.interval), 1)}
		t.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (t *throttle) pruneLocked(now time.Time) {
	for k, v := range t.visitors {
		if now.Sub(v.lastSeen) > t.interval {
			delete(t.visitors, k)
		}
	}
}
