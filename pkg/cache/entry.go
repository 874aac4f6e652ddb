package cache

import (
	"time"
)

// DefaultWindow is how long a saved entry stays fresh.
const DefaultWindow = 2 * time.Hour

// Entry is a set of records stamped with the time they were saved.
type Entry[T any] struct {
	// Timestamp is the save time in Unix seconds.
	Timestamp int64 `json:"timestamp"`

	Records []T `json:"records"`
}

// NewEntry stamps records with the current time.
func NewEntry[T any](records []T) *Entry[T] {
	if records == nil {
		records = []T{}
	}
	return &Entry[T]{
		Timestamp: time.Now().Unix(),
		Records:   records,
	}
}

// SavedAt returns the save time.
func (e *Entry[T]) SavedAt() time.Time {
	return time.Unix(e.Timestamp, 0)
}

// IsStale returns true once window has passed since the entry was saved.
func (e *Entry[T]) IsStale(window time.Duration) bool {
	return time.Now().Unix()-e.Timestamp >= int64(window/time.Second)
}

// TTL returns how long the entry stays fresh, 0 if it is already stale.
func (e *Entry[T]) TTL(window time.Duration) time.Duration {
	ttl := time.Until(e.SavedAt().Add(window))
	if ttl < 0 {
		return 0
	}
	return ttl
}
