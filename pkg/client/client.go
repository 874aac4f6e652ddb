// Package client provides the HTTP transport for the tracker's search
// endpoint: fixed headers, an optional forward proxy, rate limiting,
// tracing and request metrics.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/jira-search-client/pkg/pagination"
	"github.com/Sternrassler/jira-search-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultSearchPath is the search endpoint below the base URL.
const DefaultSearchPath = "/rest/api/2/search"

// Prometheus metrics for search requests.
var (
	jiraRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_requests_total",
		Help: "Total search requests by status",
	}, []string{"status"})

	jiraRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jira_request_duration_seconds",
		Help:    "Search request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	jiraErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_errors_total",
		Help: "Total failed search requests by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the tracker, e.g. "https://jira.example.com". REQUIRED.
	BaseURL string

	// SearchPath defaults to DefaultSearchPath.
	SearchPath string

	// UserAgent header. REQUIRED.
	UserAgent string

	// Authorization header value, e.g. from credentials.Credentials.
	// Empty sends no header.
	Authorization string

	// ProxyURL routes requests through a forward proxy. ProxyUser and
	// ProxyPassword are added as proxy credentials when set.
	ProxyURL      string
	ProxyUser     string
	ProxyPassword string

	// Timeout bounds one HTTP exchange including reading the body.
	Timeout time.Duration

	// RateLimiter gates every request. Nil disables rate limiting.
	RateLimiter *ratelimit.Tracker
}

// DefaultConfig returns a configuration for baseURL with safe defaults.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:    baseURL,
		SearchPath: DefaultSearchPath,
		UserAgent:  userAgent,
		Timeout:    60 * time.Second,
	}
}

// Client posts search bodies to the tracker. It implements
// pagination.Transport and is safe for concurrent use.
type Client struct {
	config   Config
	endpoint string
	proxy    *url.URL

	once       sync.Once
	httpClient *http.Client

	rateLimiter *ratelimit.Tracker
	logger      zerolog.Logger
}

var _ pagination.Transport = (*Client)(nil)

// New creates a new search client. The underlying HTTP client is created on
// first use.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if cfg.UserAgent == "" {
		return nil, ErrMissingUserAgent
	}
	if cfg.SearchPath == "" {
		cfg.SearchPath = DefaultSearchPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parse base url %q: invalid url", cfg.BaseURL)
	}

	var proxy *url.URL
	if cfg.ProxyURL != "" {
		proxy, err = url.Parse(cfg.ProxyURL)
		if err != nil || proxy.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, cfg.ProxyURL)
		}
		if cfg.ProxyUser != "" {
			proxy.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
		}
	}

	return &Client{
		config:      cfg,
		endpoint:    strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.SearchPath, "/"),
		proxy:       proxy,
		rateLimiter: cfg.RateLimiter,
		logger:      log.With().Str("component", "http-client").Logger(),
	}, nil
}

// Endpoint returns the URL search bodies are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.once.Do(func() {})
	c.httpClient = client
}

// SetLogger replaces the component logger.
func (c *Client) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

func (c *Client) getHTTPClient() *http.Client {
	c.once.Do(func() {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if c.proxy != nil {
			transport.Proxy = http.ProxyURL(c.proxy)
			c.logger.Debug().Str("proxy", c.proxy.Redacted()).Msg("Using forward proxy")
		}
		c.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   c.config.Timeout,
		}
	})
	return c.httpClient
}

// Perform posts one search body. Any answer from the server, including a
// non-2xx status, is returned as a Response; the error is reserved for
// requests that never completed.
func (c *Client) Perform(ctx context.Context, body []byte) (*pagination.Response, error) {
	startTime := time.Now()
	defer func() {
		jiraRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			jiraRequestsTotal.WithLabelValues("rate_limited").Inc()
			return nil, &TransportError{ErrorClass: ErrorClassRateLimit, Op: "wait", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{ErrorClass: ErrorClassNetwork, Op: "create", Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.config.Authorization != "" {
		req.Header.Set("Authorization", c.config.Authorization)
	}

	c.logger.Debug().
		Str("endpoint", c.endpoint).
		Int("body_bytes", len(body)).
		Msg("Executing search request")

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		jiraErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		jiraRequestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", c.endpoint).Msg("HTTP request failed")
		return nil, &TransportError{ErrorClass: ErrorClassNetwork, Op: "send", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		jiraErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		jiraRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &TransportError{ErrorClass: ErrorClassNetwork, Op: "read", Err: err}
	}

	if c.rateLimiter != nil {
		if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header, resp.StatusCode); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	jiraRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	if class := classifyStatus(resp.StatusCode); class != "" {
		jiraErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Search request returned error status")
	}

	return &pagination.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.getHTTPClient().CloseIdleConnections()
	return nil
}
