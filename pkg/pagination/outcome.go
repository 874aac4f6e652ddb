package pagination

// OutcomeKind is the state of one page job within a round.
type OutcomeKind int

const (
	// OutcomePending means the job has not reported yet.
	OutcomePending OutcomeKind = iota

	// OutcomeSucceeded means the page was fetched and parsed.
	OutcomeSucceeded

	// OutcomeSoftFailed means the page failed and may be retried.
	OutcomeSoftFailed

	// OutcomeHardFailed means the page failed and retrying cannot help.
	OutcomeHardFailed
)

// String implements fmt.Stringer.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomePending:
		return "pending"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeSoftFailed:
		return "soft_failed"
	case OutcomeHardFailed:
		return "hard_failed"
	default:
		return "unknown"
	}
}

// FailureClass says why a page failed.
type FailureClass string

const (
	// ClassTransport means the request never completed.
	ClassTransport FailureClass = "transport"

	// ClassTimeout means the per-page timeout fired first.
	ClassTimeout FailureClass = "timeout"

	// ClassStatus means the server answered with a non-2xx status.
	ClassStatus FailureClass = "status"

	// ClassParse means the body could not be decoded into a page.
	ClassParse FailureClass = "parse"

	// ClassRequest means the request body could not be built.
	ClassRequest FailureClass = "request"
)

// Outcome is the tagged result of one page job. The offset identifies the
// job; the kind and class carry the result.
type Outcome[T any] struct {
	Offset int
	Kind   OutcomeKind
	Class  FailureClass
	Page   Page[T]
	Err    error
}

func succeeded[T any](offset int, page Page[T]) Outcome[T] {
	return Outcome[T]{Offset: offset, Kind: OutcomeSucceeded, Page: page}
}

func softFailure[T any](offset int, class FailureClass, err error) Outcome[T] {
	return Outcome[T]{Offset: offset, Kind: OutcomeSoftFailed, Class: class, Err: err}
}

func hardFailure[T any](offset int, class FailureClass, err error) Outcome[T] {
	return Outcome[T]{Offset: offset, Kind: OutcomeHardFailed, Class: class, Err: err}
}
