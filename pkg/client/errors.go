package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Configuration errors returned by New.
var (
	// ErrMissingBaseURL is returned when no server URL is configured.
	ErrMissingBaseURL = errors.New("base url is required")

	// ErrMissingUserAgent is returned when no User-Agent is configured.
	ErrMissingUserAgent = errors.New("user-agent is required")

	// ErrInvalidProxy is returned for a proxy URL that cannot be parsed.
	ErrInvalidProxy = errors.New("invalid proxy url")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents dial, TLS, I/O and timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// TransportError is returned by Perform when no response was received.
type TransportError struct {
	ErrorClass ErrorClass
	Op         string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("search request %s (%s): %v", e.Op, e.ErrorClass, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// classifyStatus categorizes a non-2xx status for metrics and logs.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
