// Package ratelimit gates requests to the tracker's REST API. A local token
// bucket spaces requests out, and the server's X-RateLimit-Remaining,
// X-RateLimit-Reset and Retry-After headers pause or throttle requests once
// the server side budget runs low.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyRemaining      = "jira:rate_limit:remaining"
	RedisKeyLimit          = "jira:rate_limit:limit"
	RedisKeyResetTimestamp = "jira:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "jira:rate_limit:last_update"
)

// Thresholds for rate limit decisions.
const (
	// RemainingThresholdCritical pauses requests until the reset time when
	// the remaining budget falls below this value.
	RemainingThresholdCritical = 5

	// RemainingThresholdWarning throttles requests below this value.
	RemainingThresholdWarning = 20

	// RemainingThresholdHealthy indicates normal operation.
	RemainingThresholdHealthy = 50
)

// State is the last known server side rate limit budget. With a Redis store
// it is shared by every process talking to the same tracker.
type State struct {
	// Remaining is taken from X-RateLimit-Remaining. A 429 without that
	// header is recorded as 0.
	Remaining int `json:"remaining"`

	// Limit is taken from X-RateLimit-Limit, 0 if the server did not send it.
	Limit int `json:"limit"`

	// ResetAt comes from Retry-After (seconds or HTTP date) or
	// X-RateLimit-Reset (RFC 3339).
	ResetAt time.Time `json:"reset_at"`

	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= RemainingThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// defaultState is assumed until the server reports a budget.
func defaultState() *State {
	now := time.Now()
	return &State{
		Remaining:  100,
		LastUpdate: now,
		IsHealthy:  true,
	}
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsPause returns true if requests must wait for the reset time.
func (s *State) NeedsPause() bool {
	return s.Remaining < RemainingThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < RemainingThresholdWarning && !s.NeedsPause()
}

// TimeUntilReset returns the duration until the budget resets, or 0 if the
// reset time has passed or is unknown.
func (s *State) TimeUntilReset() time.Duration {
	if s.ResetAt.IsZero() {
		return 0
	}
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= RemainingThresholdHealthy
}
