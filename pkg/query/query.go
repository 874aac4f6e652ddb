// Package query builds immutable JQL search requests and splits them into
// page-sized requests for the tracker's search endpoint.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultPageSize is the page size used when callers have no preference.
// The tracker caps maxResults server side, 100 is accepted everywhere.
const DefaultPageSize = 100

var (
	// ErrEmptyJQL is returned when a query has no filter expression.
	ErrEmptyJQL = errors.New("jql must not be empty")

	// ErrInvalidPageSize is returned for a page size <= 0.
	ErrInvalidPageSize = errors.New("page size must be positive")
)

// Query is a search request template. It is never mutated: At returns a
// copy positioned at another offset.
type Query struct {
	jql        string
	startAt    int
	maxResults int
	fields     []string
}

// WireRequest is the JSON body posted to the search endpoint.
type WireRequest struct {
	JQL        string   `json:"jql"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields"`
}

// New creates a query at offset 0.
func New(jql string, pageSize int, fields []string) (Query, error) {
	if jql == "" {
		return Query{}, ErrEmptyJQL
	}
	if pageSize <= 0 {
		return Query{}, fmt.Errorf("%w (got %d)", ErrInvalidPageSize, pageSize)
	}

	projected := make([]string, len(fields))
	copy(projected, fields)

	return Query{
		jql:        jql,
		maxResults: pageSize,
		fields:     projected,
	}, nil
}

// JQL returns the filter expression.
func (q Query) JQL() string { return q.jql }

// StartAt returns the offset of the first item this query requests.
func (q Query) StartAt() int { return q.startAt }

// PageSize returns the maximum number of items per page.
func (q Query) PageSize() int { return q.maxResults }

// Fields returns a copy of the projected field list.
func (q Query) Fields() []string {
	out := make([]string, len(q.fields))
	copy(out, q.fields)
	return out
}

// At returns a copy of q starting at offset. The field slice is shared,
// which is safe because no Query method writes to it.
func (q Query) At(offset int) Query {
	if offset < 0 {
		offset = 0
	}
	q.startAt = offset
	return q
}

// WithPageSize returns a copy of q requesting pageSize items per page.
// Values <= 0 leave the page size unchanged.
func (q Query) WithPageSize(pageSize int) Query {
	if pageSize > 0 {
		q.maxResults = pageSize
	}
	return q
}

// CreateRemaining returns one query per page after the first, at offsets
// pageSize, 2*pageSize, ... below total.
func (q Query) CreateRemaining(total int) []Query {
	if total <= q.maxResults || q.maxResults <= 0 {
		return nil
	}

	pages := (total + q.maxResults - 1) / q.maxResults
	remaining := make([]Query, 0, pages-1)
	for page := 1; page < pages; page++ {
		remaining = append(remaining, q.At(page*q.maxResults))
	}
	return remaining
}

// WireRequest returns the request body for this page.
func (q Query) WireRequest() WireRequest {
	return WireRequest{
		JQL:        q.jql,
		StartAt:    q.startAt,
		MaxResults: q.maxResults,
		Fields:     q.Fields(),
	}
}

// Body returns the JSON encoded wire request.
func (q Query) Body() ([]byte, error) {
	data, err := json.Marshal(q.WireRequest())
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	return data, nil
}

// String is used in log fields.
func (q Query) String() string {
	return fmt.Sprintf("jql=%q startAt=%d maxResults=%d", q.jql, q.startAt, q.maxResults)
}
