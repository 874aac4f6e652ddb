package pagination

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFirstPage is returned when the page at offset 0 fails. The total
	// is unknown at that point, so the search cannot continue.
	ErrFirstPage = errors.New("first page failed")

	// ErrRetryExhausted is returned when a page used up its retry budget.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrMalformedPage is wrapped by parsers for bodies of the wrong shape.
	ErrMalformedPage = errors.New("malformed page")

	// ErrNoResponse is returned when a transport reports neither a
	// response nor an error.
	ErrNoResponse = errors.New("transport returned no response")
)

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// SearchError is returned by Searcher.Search when the search cannot finish.
type SearchError struct {
	// Fatal is set when the first page failed.
	Fatal bool

	// Class is the failure class of the last failure observed.
	Class FailureClass

	// Offsets lists the pages that could not be fetched.
	Offsets []int

	Err error
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	offsets := make([]string, len(e.Offsets))
	for i, o := range e.Offsets {
		offsets[i] = fmt.Sprint(o)
	}
	return fmt.Sprintf("search failed (class %s, offsets [%s]): %v",
		e.Class, strings.Join(offsets, ","), e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SearchError) Unwrap() error {
	return e.Err
}

// bodySnippet trims an error body for logs and errors.
func bodySnippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
