package pagination

// Page is one parsed page of a search result.
type Page[T any] struct {
	// Total is the size of the whole result set. Only the page at offset 0
	// is trusted for scheduling.
	Total int

	// StartAt echoes the offset the server served.
	StartAt int

	Items []T
}

// Parser decodes a response body into a Page. Implementations should wrap
// ErrMalformedPage for bodies with an unexpected shape.
type Parser[T any] interface {
	Parse(body []byte) (Page[T], error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc[T any] func(body []byte) (Page[T], error)

// Parse implements Parser.
func (f ParserFunc[T]) Parse(body []byte) (Page[T], error) {
	return f(body)
}
