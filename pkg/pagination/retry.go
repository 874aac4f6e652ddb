package pagination

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a page is dispatched again and how long the
// searcher waits between rounds.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts per page (including the
	// initial request) for transport, timeout and status failures.
	MaxAttempts int

	// MaxParseAttempts is the maximum number of attempts per page whose
	// body could not be parsed.
	MaxParseAttempts int

	// InitialBackoff is the wait before the second round.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between rounds.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the wait from round to round.
	BackoffMultiplier float64
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       5,
		MaxParseAttempts:  2,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// normalize fills zero or invalid fields from the defaults.
func (p RetryPolicy) normalize() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.MaxParseAttempts <= 0 {
		p.MaxParseAttempts = def.MaxParseAttempts
	}
	if p.MaxParseAttempts > p.MaxAttempts {
		p.MaxParseAttempts = p.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = def.BackoffMultiplier
	}
	return p
}

// Exhausted reports whether a page with the given failure counts must not
// be dispatched again.
func (p RetryPolicy) Exhausted(failures, parseFailures int) bool {
	return failures >= p.MaxAttempts || parseFailures >= p.MaxParseAttempts
}

// newBackOff returns the round delay sequence for one search. Jitter is
// ±20% to keep parallel searches from retrying in lockstep.
func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.Multiplier = p.BackoffMultiplier
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
