// Package issue decodes the tracker's search response into typed issues.
//
// An issue is an envelope around a caller defined field set:
//
//	type Fields struct {
//		Summary string `json:"summary"`
//	}
//
//	searcher := pagination.NewSearcher(transport, issue.NewParser[issue.Issue[Fields]](), cfg)
//
// RawIssue keeps the fields undecoded for callers that only pass them on.
package issue

import (
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/jira-search-client/pkg/pagination"
)

// Issue is one search hit. F receives the projected fields.
type Issue[F any] struct {
	Expand string `json:"expand,omitempty"`
	ID     string `json:"id"`
	Self   string `json:"self"`
	Key    string `json:"key"`
	Fields F      `json:"fields"`
}

// RawIssue is an issue whose fields are kept as raw JSON.
type RawIssue = Issue[json.RawMessage]

// FieldLister is implemented by field types that know which fields they
// need projected by the search.
type FieldLister interface {
	FieldList() []string
}

// FieldsOf returns the projection declared by F.
func FieldsOf[F FieldLister]() []string {
	var f F
	return f.FieldList()
}

// searchResult mirrors the search response. Pointers tell a missing member
// apart from a zero one.
type searchResult[T any] struct {
	Expand     string `json:"expand"`
	StartAt    int    `json:"startAt"`
	MaxResults int    `json:"maxResults"`
	Total      *int   `json:"total"`
	Issues     *[]T   `json:"issues"`
}

// Parse decodes one page of a search response. Bodies without total or
// issues, or with a negative total, are rejected with
// pagination.ErrMalformedPage.
func Parse[T any](body []byte) (pagination.Page[T], error) {
	var result searchResult[T]
	if err := json.Unmarshal(body, &result); err != nil {
		return pagination.Page[T]{}, fmt.Errorf("%w: %w", pagination.ErrMalformedPage, err)
	}
	if result.Total == nil {
		return pagination.Page[T]{}, fmt.Errorf("%w: missing total", pagination.ErrMalformedPage)
	}
	if *result.Total < 0 {
		return pagination.Page[T]{}, fmt.Errorf("%w: negative total %d", pagination.ErrMalformedPage, *result.Total)
	}
	if result.Issues == nil {
		return pagination.Page[T]{}, fmt.Errorf("%w: missing issues", pagination.ErrMalformedPage)
	}

	return pagination.Page[T]{
		Total:   *result.Total,
		StartAt: result.StartAt,
		Items:   *result.Issues,
	}, nil
}

// NewParser returns Parse as a pagination.Parser.
func NewParser[T any]() pagination.Parser[T] {
	return pagination.ParserFunc[T](Parse[T])
}
