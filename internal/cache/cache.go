package cache

import (
	"context"
	"time"
)

// Cache is the interface used by the data-access layer.
// Implemented by Tiered and by the logging decorator around it.
//
// Get never fails: a missing, expired or unreadable entry is reported as
// ok == false. Set, Delete and Clear are best-effort with respect to the
// durable tier and never surface its errors.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	// Clear removes every entry whose key starts with prefix.
	// An empty prefix empties both tiers.
	Clear(ctx context.Context, prefix string)
	Stats() Stats
}

// Stats is a point-in-time snapshot of the fast tier.
type Stats struct {
	EntryCount     int    `json:"entryCount"`
	Capacity       int    `json:"capacity"`
	Hits           uint64 `json:"hits"`
	Misses         uint64 `json:"misses"`
	Evictions      uint64 `json:"evictions"`
	DurableEnabled bool   `json:"durableEnabled"`
}
