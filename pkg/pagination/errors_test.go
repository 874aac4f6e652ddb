package pagination

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSearchError_Error(t *testing.T) {
	err := &SearchError{
		Class:   ClassStatus,
		Offsets: []int{100, 300},
		Err:     fmt.Errorf("%w: %w", ErrRetryExhausted, &StatusError{StatusCode: 503}),
	}

	msg := err.Error()
	for _, want := range []string{"class status", "offsets [100,300]", "retry attempts exhausted", "unexpected status 503"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
}

func TestSearchError_Unwrap(t *testing.T) {
	cause := &StatusError{StatusCode: 502, Body: "bad gateway"}
	err := &SearchError{Fatal: true, Err: fmt.Errorf("%w: %w", ErrFirstPage, cause)}

	if !errors.Is(err, ErrFirstPage) {
		t.Error("errors.Is(err, ErrFirstPage) = false")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 502 {
		t.Errorf("errors.As did not find the status error: %v", err)
	}
}

func TestBodySnippet(t *testing.T) {
	if got := bodySnippet([]byte("  short \n")); got != "short" {
		t.Errorf("bodySnippet() = %q, want %q", got, "short")
	}

	long := strings.Repeat("x", 500)
	got := bodySnippet([]byte(long))
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("bodySnippet() length = %d, want 203 with ellipsis", len(got))
	}
}
