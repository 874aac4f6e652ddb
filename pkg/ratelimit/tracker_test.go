package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestTracker(cfg Config) *Tracker {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return NewTracker(NewMemoryStore(), cfg, logger)
}

func TestTracker_GetState_DefaultHealthy(t *testing.T) {
	tracker := newTestTracker(DefaultConfig())

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining != 100 || !state.IsHealthy {
		t.Errorf("default state = %+v, want healthy with 100 remaining", state)
	}
}

func TestTracker_UpdateFromHeaders(t *testing.T) {
	tests := []struct {
		name          string
		headers       map[string]string
		status        int
		wantRemaining int
		wantLimit     int
		wantReset     time.Duration
		wantErr       bool
		wantIgnored   bool
	}{
		{
			name:          "budget headers",
			headers:       map[string]string{"X-RateLimit-Remaining": "75", "X-RateLimit-Limit": "100"},
			status:        http.StatusOK,
			wantRemaining: 75,
			wantLimit:     100,
		},
		{
			name:          "retry after seconds",
			headers:       map[string]string{"X-RateLimit-Remaining": "0", "Retry-After": "30"},
			status:        http.StatusTooManyRequests,
			wantRemaining: 0,
			wantReset:     30 * time.Second,
		},
		{
			name:          "429 without budget header",
			headers:       map[string]string{"Retry-After": "10"},
			status:        http.StatusTooManyRequests,
			wantRemaining: 0,
			wantReset:     10 * time.Second,
		},
		{
			name:        "no headers",
			headers:     map[string]string{},
			status:      http.StatusOK,
			wantIgnored: true,
		},
		{
			name:    "invalid remaining",
			headers: map[string]string{"X-RateLimit-Remaining": "many"},
			status:  http.StatusOK,
			wantErr: true,
		},
		{
			name:    "invalid reset",
			headers: map[string]string{"X-RateLimit-Remaining": "3", "X-RateLimit-Reset": "soon"},
			status:  http.StatusOK,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newTestTracker(DefaultConfig())
			ctx := context.Background()

			headers := http.Header{}
			for k, v := range tt.headers {
				headers.Set(k, v)
			}

			err := tracker.UpdateFromHeaders(ctx, headers, tt.status)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateFromHeaders() error = %v", err)
			}

			stored, _ := tracker.store.Load(ctx)
			if tt.wantIgnored {
				if stored != nil {
					t.Errorf("state recorded for response without headers: %+v", stored)
				}
				return
			}

			if stored.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", stored.Remaining, tt.wantRemaining)
			}
			if stored.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", stored.Limit, tt.wantLimit)
			}
			if tt.wantReset > 0 {
				got := stored.TimeUntilReset()
				if got < tt.wantReset-2*time.Second || got > tt.wantReset {
					t.Errorf("TimeUntilReset() = %v, want about %v", got, tt.wantReset)
				}
			}
		})
	}
}

func TestTracker_UpdateFromHeaders_ResetTimestamp(t *testing.T) {
	tracker := newTestTracker(DefaultConfig())
	ctx := context.Background()
	resetAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	headers := http.Header{}
	headers.Set("X-RateLimit-Remaining", "2")
	headers.Set("X-RateLimit-Reset", resetAt.Format(time.RFC3339))

	if err := tracker.UpdateFromHeaders(ctx, headers, http.StatusOK); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.ResetAt.Equal(resetAt) {
		t.Errorf("ResetAt = %v, want %v", state.ResetAt, resetAt)
	}
}

func TestTracker_Wait_Healthy(t *testing.T) {
	tracker := newTestTracker(DefaultConfig())

	start := time.Now()
	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if d := time.Since(start); d > 100*time.Millisecond {
		t.Errorf("Wait() took %v, want immediate", d)
	}
}

func TestTracker_Wait_Throttles(t *testing.T) {
	tracker := newTestTracker(Config{RequestsPerSecond: 100, Burst: 10, Throttle: 50 * time.Millisecond})
	ctx := context.Background()

	headers := http.Header{}
	headers.Set("X-RateLimit-Remaining", "15")
	if err := tracker.UpdateFromHeaders(ctx, headers, http.StatusOK); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	start := time.Now()
	if err := tracker.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if d := time.Since(start); d < 45*time.Millisecond {
		t.Errorf("Wait() took %v, want >= throttle", d)
	}
}

func TestTracker_Wait_PausesUntilReset(t *testing.T) {
	tracker := newTestTracker(Config{RequestsPerSecond: 100, Burst: 10})
	ctx := context.Background()

	headers := http.Header{}
	headers.Set("X-RateLimit-Remaining", "0")
	headers.Set("Retry-After", "1")
	if err := tracker.UpdateFromHeaders(ctx, headers, http.StatusTooManyRequests); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	start := time.Now()
	if err := tracker.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if d := time.Since(start); d < 800*time.Millisecond {
		t.Errorf("Wait() took %v, want about 1s", d)
	}
}

func TestTracker_Wait_PauseHonoursContext(t *testing.T) {
	tracker := newTestTracker(DefaultConfig())

	headers := http.Header{}
	headers.Set("Retry-After", "3600")
	if err := tracker.UpdateFromHeaders(context.Background(), headers, http.StatusTooManyRequests); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tracker.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestTracker_Wait_ExpiredPauseDoesNotBlock(t *testing.T) {
	tracker := newTestTracker(DefaultConfig())
	ctx := context.Background()

	if err := tracker.store.Save(ctx, &State{Remaining: 0, ResetAt: time.Now().Add(-time.Second), LastUpdate: time.Now()}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	start := time.Now()
	if err := tracker.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if d := time.Since(start); d > 100*time.Millisecond {
		t.Errorf("Wait() took %v after reset passed", d)
	}
}

func TestNewTracker_Defaults(t *testing.T) {
	tracker := NewTracker(nil, Config{}, zerolog.Nop())

	if tracker.store == nil {
		t.Fatal("nil store not replaced")
	}
	if tracker.limiter.Burst() != DefaultConfig().Burst {
		t.Errorf("Burst = %d, want %d", tracker.limiter.Burst(), DefaultConfig().Burst)
	}
}
