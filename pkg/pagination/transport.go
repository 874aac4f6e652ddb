package pagination

import (
	"context"
	"net/http"
)

// Response is what the server answered, whatever the status.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport performs one search request.
//
// Perform returns a Response whenever the server answered, including non-2xx
// statuses. A non-nil error means the request never completed (dial, TLS,
// I/O, timeout). The searcher classifies the two separately.
type Transport interface {
	Perform(ctx context.Context, body []byte) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, body []byte) (*Response, error)

// Perform implements Transport.
func (f TransportFunc) Perform(ctx context.Context, body []byte) (*Response, error) {
	return f(ctx, body)
}
