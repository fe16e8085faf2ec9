package cache

import (
	"encoding/json"
	"time"
)

// Entry is one cached payload in the fast tier.
type Entry struct {
	Value          []byte
	ExpiresAt      time.Time
	LastAccessedAt time.Time

	// seq orders entries that share a LastAccessedAt.
	seq uint64
}

func (e *Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// durableRecord is the serialized form kept in the durable tier. Data is
// embedded as raw JSON; timestamps are unix milliseconds.
type durableRecord struct {
	Data       json.RawMessage `json:"data"`
	Expiry     int64           `json:"expiry"`
	AccessTime int64           `json:"accessTime"`
}

func newDurableRecord(e *Entry) durableRecord {
	return durableRecord{
		Data:       e.Value,
		Expiry:     e.ExpiresAt.UnixMilli(),
		AccessTime: e.LastAccessedAt.UnixMilli(),
	}
}

func decodeEntry(raw string) (*Entry, error) {
	var rec durableRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	if rec.Expiry == 0 {
		return nil, errMissingExpiry
	}
	return &Entry{
		Value:          []byte(rec.Data),
		ExpiresAt:      time.UnixMilli(rec.Expiry),
		LastAccessedAt: time.UnixMilli(rec.AccessTime),
	}, nil
}
