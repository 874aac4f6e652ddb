package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit tracking.
var (
	jiraRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jira_rate_limit_remaining",
		Help: "Requests remaining in the current server rate limit window",
	})

	jiraRateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_rate_limit_waits_total",
		Help: "Total number of requests delayed by the rate limiter by reason",
	}, []string{"reason"})

	jiraRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jira_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting on the rate limiter",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60},
	})
)

// Config holds the local request budget.
type Config struct {
	// RequestsPerSecond is the token bucket refill rate.
	RequestsPerSecond float64

	// Burst is the token bucket size.
	Burst int

	// Throttle is the extra delay applied below RemainingThresholdWarning.
	Throttle time.Duration
}

// DefaultConfig returns the default request budget.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             10,
		Throttle:          1 * time.Second,
	}
}

// Tracker monitors the server's rate limit headers and gates requests.
type Tracker struct {
	store    Store
	limiter  *rate.Limiter
	throttle time.Duration
	logger   zerolog.Logger
}

// NewTracker creates a tracker. A nil store keeps state in memory.
func NewTracker(store Store, cfg Config, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	def := DefaultConfig()
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Throttle < 0 {
		cfg.Throttle = 0
	}

	return &Tracker{
		store:    store,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		throttle: cfg.Throttle,
		logger:   logger,
	}
}

// GetState returns the last recorded state, or a healthy default if the
// server has not reported a budget yet.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		t.logger.Debug().Msg("No rate limit state recorded, assuming healthy")
		return defaultState(), nil
	}
	return state, nil
}

// UpdateFromHeaders records the budget reported with a response. Responses
// without rate limit headers are ignored unless the status is 429.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header, status int) error {
	remainStr := headers.Get("X-RateLimit-Remaining")
	if remainStr == "" && status != http.StatusTooManyRequests {
		return nil
	}

	now := time.Now()
	state := &State{LastUpdate: now}

	if remainStr != "" {
		remain, err := strconv.Atoi(remainStr)
		if err != nil {
			return fmt.Errorf("parse X-RateLimit-Remaining header: %w", err)
		}
		state.Remaining = remain
	}

	if limitStr := headers.Get("X-RateLimit-Limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return fmt.Errorf("parse X-RateLimit-Limit header: %w", err)
		}
		state.Limit = limit
	}

	resetAt, err := parseReset(headers, now)
	if err != nil {
		return err
	}
	state.ResetAt = resetAt
	state.UpdateHealth()

	if err := t.store.Save(ctx, state); err != nil {
		return err
	}

	jiraRateLimitRemaining.Set(float64(state.Remaining))

	switch {
	case state.NeedsPause():
		t.logger.Error().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit CRITICAL - requests will pause until reset")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Int("limit", state.Limit).
			Msg("Rate limit state updated")
	}

	return nil
}

// parseReset reads Retry-After first, then X-RateLimit-Reset.
func parseReset(headers http.Header, now time.Time) (time.Time, error) {
	if retryAfter := headers.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			return now.Add(time.Duration(seconds) * time.Second), nil
		}
		at, err := http.ParseTime(retryAfter)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse Retry-After header: %w", err)
		}
		return at, nil
	}

	if reset := headers.Get("X-RateLimit-Reset"); reset != "" {
		at, err := time.Parse(time.RFC3339, reset)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse X-RateLimit-Reset header: %w", err)
		}
		return at, nil
	}

	return time.Time{}, nil
}

// Wait blocks until a request may be sent or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	start := time.Now()
	defer func() {
		if waited := time.Since(start); waited > time.Millisecond {
			jiraRateLimitWaitSeconds.Observe(waited.Seconds())
		}
	}()

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	state, err := t.GetState(ctx)
	if err != nil {
		// A broken state store must not stop the search.
		t.logger.Warn().Err(err).Msg("Failed to read rate limit state")
		return nil
	}

	if state.NeedsPause() {
		wait := state.TimeUntilReset()
		if wait > 0 {
			t.logger.Warn().
				Int("remaining", state.Remaining).
				Dur("wait_duration", wait).
				Msg("Rate limit critical - pausing request")
			jiraRateLimitWaitsTotal.WithLabelValues("pause").Inc()
			return sleep(ctx, wait)
		}
	}

	if state.NeedsThrottling() && t.throttle > 0 {
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Msg("Rate limit warning - throttling request")
		jiraRateLimitWaitsTotal.WithLabelValues("throttle").Inc()
		return sleep(ctx, t.throttle)
	}

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
