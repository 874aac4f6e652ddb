package pagination

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/jira-search-client/pkg/query"
)

const tracerName = "github.com/Sternrassler/jira-search-client/pkg/pagination"

// Config holds searcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of pages in flight within a round.
	MaxConcurrency int

	// Timeout per page fetch. A page that does not report in time is a
	// soft failure of class timeout.
	Timeout time.Duration

	// Retry bounds retries of failed pages.
	Retry RetryPolicy
}

// DefaultConfig returns the default searcher configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        30 * time.Second,
		Retry:          DefaultRetryPolicy(),
	}
}

// Option customizes a Searcher.
type Option func(*options)

type options struct {
	logger *zerolog.Logger
	tracer trace.Tracer
}

// WithLogger sets the logger used by the searcher.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithTracer sets the tracer used for search and round spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// Searcher runs paginated searches against one Transport.
type Searcher[T any] struct {
	transport Transport
	parser    Parser[T]
	config    Config
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewSearcher creates a new searcher.
func NewSearcher[T any](transport Transport, parser Parser[T], config Config, opts ...Option) *Searcher[T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	config.Retry = config.Retry.normalize()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := log.With().Str("component", "searcher").Logger()
	if o.logger != nil {
		logger = *o.logger
	}
	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Searcher[T]{
		transport: transport,
		parser:    parser,
		config:    config,
		logger:    logger,
		tracer:    tracer,
	}
}

// Config returns the effective configuration after defaults were applied.
func (s *Searcher[T]) Config() Config {
	return s.config
}

// Search fetches every page matching q and returns the merged result.
// q's offset is ignored; the search always starts at offset 0.
func (s *Searcher[T]) Search(ctx context.Context, q query.Query) (*Accumulator[T], error) {
	if q.JQL() == "" {
		return nil, query.ErrEmptyJQL
	}
	if q.PageSize() <= 0 {
		return nil, fmt.Errorf("%w (got %d)", query.ErrInvalidPageSize, q.PageSize())
	}

	start := time.Now()
	searchID := uuid.NewString()
	logger := s.logger.With().Str("search_id", searchID).Logger()

	ctx, span := s.tracer.Start(ctx, "pagination.Search", trace.WithAttributes(
		attribute.String("search.id", searchID),
		attribute.Int("search.page_size", q.PageSize()),
	))
	defer span.End()

	acc, err := s.search(ctx, logger, q)
	if err != nil {
		searchesTotal.WithLabelValues(resultLabel(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	searchesTotal.WithLabelValues("complete").Inc()
	searchDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("search.total", acc.Total()), attribute.Int("search.items", acc.Len()))

	logger.Info().
		Int("total", acc.Total()).
		Int("items", acc.Len()).
		Int("pages", len(acc.Offsets())).
		Dur("duration", time.Since(start)).
		Msg("Search complete")

	return acc, nil
}

func (s *Searcher[T]) search(ctx context.Context, logger zerolog.Logger, q query.Query) (*Accumulator[T], error) {
	acc := NewAccumulator[T]()

	// Phase 1: the first page tells us how many pages exist.
	first := s.round(ctx, logger, "discover", 1, []query.Query{q.At(0)})[0]
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search cancelled: %w", err)
	}
	if first.Kind != OutcomeSucceeded {
		logger.Error().
			Err(first.Err).
			Str("class", string(first.Class)).
			Msg("First page failed, total result size unknown")
		return nil, &SearchError{
			Fatal:   true,
			Class:   first.Class,
			Offsets: []int{0},
			Err:     fmt.Errorf("%w: %w", ErrFirstPage, first.Err),
		}
	}
	acc.Merge(0, first.Page)

	total := acc.Total()

	// The server may cap maxResults below the requested page size. Offsets
	// must step by what it actually serves or items would be skipped.
	if served := len(first.Page.Items); served > 0 && served < q.PageSize() && total > served {
		logger.Warn().
			Int("requested", q.PageSize()).
			Int("served", served).
			Msg("Server capped page size, paging with the served size")
		q = q.WithPageSize(served)
	}
	pending := q.CreateRemaining(total)

	logger.Info().
		Str("jql", q.JQL()).
		Int("total", total).
		Int("page_size", q.PageSize()).
		Int("remaining_pages", len(pending)).
		Msg("Starting parallel page fetch")

	// Phase 2: everything else, retried round by round.
	if err := s.drain(ctx, logger, acc, pending); err != nil {
		return nil, err
	}

	if acc.Len() != acc.Total() {
		// The result set changed on the server while we were paging.
		logger.Warn().
			Int("total", acc.Total()).
			Int("items", acc.Len()).
			Msg("Merged item count differs from reported total")
	}

	return acc, nil
}

// drain dispatches pending pages in rounds until none are left or one of
// them runs out of attempts.
func (s *Searcher[T]) drain(ctx context.Context, logger zerolog.Logger, acc *Accumulator[T], pending []query.Query) error {
	failures := make(map[int]int)
	parseFailures := make(map[int]int)
	delays := s.config.Retry.newBackOff()
	totalPages := len(pending) + 1

	for round := 1; len(pending) > 0; round++ {
		if round > 1 {
			wait := delays.NextBackOff()
			searchRetryBackoffSeconds.Observe(wait.Seconds())
			logger.Debug().
				Int("round", round).
				Int("pending", len(pending)).
				Dur("backoff", wait).
				Msg("Retrying failed pages after backoff")

			if err := sleepContext(ctx, wait); err != nil {
				return fmt.Errorf("search cancelled: %w", err)
			}
		}

		outcomes := s.round(ctx, logger, "fetch", round, pending)
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("search cancelled: %w", err)
		}

		finished := make(map[int]struct{}, len(outcomes))
		var exhausted []int
		var lastFailure Outcome[T]

		for _, o := range outcomes {
			switch o.Kind {
			case OutcomeSucceeded:
				if !acc.Merge(o.Offset, o.Page) {
					searchPagesTotal.WithLabelValues("duplicate").Inc()
					logger.Warn().Int("offset", o.Offset).Msg("Page already merged, dropping duplicate")
				}
				finished[o.Offset] = struct{}{}

			case OutcomeSoftFailed:
				failures[o.Offset]++
				if o.Class == ClassParse {
					parseFailures[o.Offset]++
				}
				lastFailure = o
				if s.config.Retry.Exhausted(failures[o.Offset], parseFailures[o.Offset]) {
					exhausted = append(exhausted, o.Offset)
					searchRetryExhaustedTotal.WithLabelValues(string(o.Class)).Inc()
				}

			case OutcomeHardFailed:
				lastFailure = o
				exhausted = append(exhausted, o.Offset)
				searchRetryExhaustedTotal.WithLabelValues(string(o.Class)).Inc()
			}
		}

		pending = prune(pending, finished)

		if len(exhausted) > 0 {
			sort.Ints(exhausted)
			logger.Error().
				Ints("offsets", exhausted).
				Str("class", string(lastFailure.Class)).
				Err(lastFailure.Err).
				Int("round", round).
				Msg("Retry attempts exhausted")
			return &SearchError{
				Class:   lastFailure.Class,
				Offsets: exhausted,
				Err:     fmt.Errorf("%w: %w", ErrRetryExhausted, lastFailure.Err),
			}
		}

		fetched := len(acc.Offsets())
		logger.Info().
			Int("round", round).
			Int("fetched_pages", fetched).
			Int("total_pages", totalPages).
			Int("pending", len(pending)).
			Float64("progress_pct", float64(fetched)/float64(totalPages)*100).
			Msg("Fetch progress")
	}

	return nil
}

// round dispatches every job concurrently and returns once all of them have
// reported. Outcomes are in job order.
func (s *Searcher[T]) round(ctx context.Context, logger zerolog.Logger, phase string, n int, jobs []query.Query) []Outcome[T] {
	ctx, span := s.tracer.Start(ctx, "pagination.round", trace.WithAttributes(
		attribute.String("round.phase", phase),
		attribute.Int("round.number", n),
		attribute.Int("round.jobs", len(jobs)),
	))
	defer span.End()

	searchRoundsTotal.WithLabelValues(phase).Inc()
	outcomes := make([]Outcome[T], len(jobs))

	var g errgroup.Group
	g.SetLimit(s.config.MaxConcurrency)
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = s.fetch(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		searchPagesTotal.WithLabelValues(o.Kind.String()).Inc()
		if o.Kind == OutcomeSucceeded {
			continue
		}
		searchPageFailuresTotal.WithLabelValues(string(o.Class)).Inc()

		// Status failures carry the server's answer, transport failures
		// never got one.
		event := logger.Warn()
		if o.Class == ClassStatus {
			var statusErr *StatusError
			if errors.As(o.Err, &statusErr) {
				event = event.Int("status", statusErr.StatusCode)
			}
		}
		event.
			Err(o.Err).
			Str("phase", phase).
			Int("round", n).
			Int("offset", o.Offset).
			Str("class", string(o.Class)).
			Str("outcome", o.Kind.String()).
			Msg("Page fetch failed")
	}

	return outcomes
}

type performResult struct {
	resp *Response
	err  error
}

// fetch performs and parses one page. It never blocks longer than the
// per-page timeout, even when the transport ignores its context.
func (s *Searcher[T]) fetch(ctx context.Context, q query.Query) Outcome[T] {
	offset := q.StartAt()

	body, err := q.Body()
	if err != nil {
		return hardFailure[T](offset, ClassRequest, err)
	}

	pageCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	done := make(chan performResult, 1)
	go func() {
		resp, err := s.transport.Perform(pageCtx, body)
		done <- performResult{resp: resp, err: err}
	}()

	var res performResult
	select {
	case res = <-done:
	case <-pageCtx.Done():
		if ctx.Err() != nil {
			return softFailure[T](offset, ClassTransport, ctx.Err())
		}
		return softFailure[T](offset, ClassTimeout, fmt.Errorf("page %d: %w", offset, pageCtx.Err()))
	}

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return softFailure[T](offset, ClassTimeout, res.err)
		}
		return softFailure[T](offset, ClassTransport, res.err)
	}
	if res.resp == nil {
		return softFailure[T](offset, ClassTransport, ErrNoResponse)
	}
	if !res.resp.OK() {
		// Never decode an error body as a page.
		return softFailure[T](offset, ClassStatus, &StatusError{
			StatusCode: res.resp.StatusCode,
			Body:       bodySnippet(res.resp.Body),
		})
	}

	page, err := s.parser.Parse(res.resp.Body)
	if err != nil {
		return softFailure[T](offset, ClassParse, err)
	}
	if page.StartAt != offset {
		s.logger.Debug().
			Int("requested", offset).
			Int("served", page.StartAt).
			Msg("Server echoed a different startAt, keying page by requested offset")
	}

	return succeeded(offset, page)
}

// prune drops finished jobs from pending, keeping order.
func prune(pending []query.Query, finished map[int]struct{}) []query.Query {
	remaining := pending[:0:0]
	for _, q := range pending {
		if _, done := finished[q.StartAt()]; !done {
			remaining = append(remaining, q)
		}
	}
	return remaining
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrFirstPage):
		return "fatal"
	case errors.Is(err, ErrRetryExhausted):
		return "exhausted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
