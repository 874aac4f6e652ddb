// Package service wires configuration, credentials, the HTTP client, rate
// limiting, the paginated searcher and the records cache into one search
// entry point shared by the CLI and the HTTP service.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/jira-search-client/internal/config"
	"github.com/Sternrassler/jira-search-client/pkg/cache"
	"github.com/Sternrassler/jira-search-client/pkg/client"
	"github.com/Sternrassler/jira-search-client/pkg/credentials"
	"github.com/Sternrassler/jira-search-client/pkg/issue"
	"github.com/Sternrassler/jira-search-client/pkg/pagination"
	"github.com/Sternrassler/jira-search-client/pkg/query"
	"github.com/Sternrassler/jira-search-client/pkg/ratelimit"
)

// ErrInvalidRequest is returned for requests that cannot be turned into a
// query, such as an empty JQL expression.
var ErrInvalidRequest = errors.New("invalid search request")

// Request describes one search.
type Request struct {
	JQL string `json:"jql"`

	// Fields defaults to the basic issue fields.
	Fields []string `json:"fields,omitempty"`

	// PageSize defaults to the configured page size.
	PageSize int `json:"page_size,omitempty"`

	// Cache names the cache entry. Empty bypasses the cache.
	Cache string `json:"cache,omitempty"`
}

// Result is the merged outcome of a search.
type Result struct {
	Total     int              `json:"total"`
	Count     int              `json:"count"`
	FromCache bool             `json:"from_cache"`
	Issues    []issue.RawIssue `json:"issues"`
}

// Service runs searches against one tracker.
type Service struct {
	config   *config.Config
	client   *client.Client
	limiter  *ratelimit.Tracker
	searcher *pagination.Searcher[issue.RawIssue]
	cache    *cache.Manager
	redis    *redis.Client
	logger   zerolog.Logger
}

// New builds a Service. With cache.redis_url set, cached records and rate
// limit state live in Redis; otherwise records go to cache.dir and rate
// limit state stays in memory. An empty cache.dir disables the cache.
func New(ctx context.Context, cfg *config.Config, creds credentials.Credentials, logger zerolog.Logger) (*Service, error) {
	if cfg.Server.BaseURL == "" {
		return nil, client.ErrMissingBaseURL
	}

	s := &Service{
		config: cfg,
		logger: logger.With().Str("component", "service").Logger(),
	}

	var (
		limitStore ratelimit.Store
		cacheStore cache.Store
	)
	if cfg.Cache.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		s.redis = redis.NewClient(opts)
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.redis.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		limitStore = ratelimit.NewRedisStore(s.redis)
		cacheStore = cache.NewRedisStore(s.redis)
		s.logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	} else if cfg.Cache.Dir != "" {
		fileStore, err := cache.NewFileStore(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		cacheStore = fileStore
	}

	s.limiter = ratelimit.NewTracker(limitStore, cfg.RateLimitConfig(),
		logger.With().Str("component", "ratelimit").Logger())

	clientCfg := cfg.ClientConfig(creds)
	clientCfg.RateLimiter = s.limiter
	c, err := client.New(clientCfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create client: %w", err)
	}
	c.SetLogger(logger.With().Str("component", "http-client").Logger())
	s.client = c

	s.searcher = pagination.NewSearcher(c, issue.NewParser[issue.RawIssue](), cfg.SearcherConfig(),
		pagination.WithLogger(logger.With().Str("component", "searcher").Logger()))

	if cacheStore != nil {
		s.cache = cache.NewManager(cacheStore, cfg.CacheConfig(),
			logger.With().Str("component", "cache").Logger())
	}

	s.logger.Debug().
		Str("endpoint", c.Endpoint()).
		Str("auth", creds.String()).
		Bool("cache", s.cache != nil).
		Bool("redis", s.redis != nil).
		Msg("Search service ready")

	return s, nil
}

// Search runs req, serving it from the cache while a fresh entry exists.
func (s *Service) Search(ctx context.Context, req Request) (*Result, error) {
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = s.config.Search.PageSize
	}
	fields := req.Fields
	if len(fields) == 0 {
		fields = issue.FieldsOf[issue.BasicFields]()
	}

	q, err := query.New(req.JQL, pageSize, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	total := -1
	search := func(ctx context.Context) ([]issue.RawIssue, error) {
		acc, err := s.searcher.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		total = acc.Total()
		return acc.Items(), nil
	}

	var (
		issues    []issue.RawIssue
		fromCache bool
	)
	if req.Cache != "" && s.cache != nil {
		key := cache.NewKey(req.Cache, q.JQL(), q.Fields())
		issues, fromCache, err = cache.LoadOrSearch(ctx, s.cache, key, search)
	} else {
		issues, err = search(ctx)
	}
	if err != nil {
		return nil, err
	}

	if total < 0 {
		total = len(issues)
	}
	if issues == nil {
		issues = []issue.RawIssue{}
	}
	return &Result{
		Total:     total,
		Count:     len(issues),
		FromCache: fromCache,
		Issues:    issues,
	}, nil
}

// RateLimitState returns the last known server request budget.
func (s *Service) RateLimitState(ctx context.Context) (*ratelimit.State, error) {
	return s.limiter.GetState(ctx)
}

// Ping checks the service dependencies. Without Redis there is nothing to
// check.
func (s *Service) Ping(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Ping(ctx).Err()
}

// Close releases connections.
func (s *Service) Close() error {
	var errs []error
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}
