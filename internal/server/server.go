// Package server exposes searches over HTTP together with health and
// Prometheus endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/jira-search-client/internal/service"
	"github.com/Sternrassler/jira-search-client/pkg/metrics"
	"github.com/Sternrassler/jira-search-client/pkg/pagination"
)

// maxRequestBytes bounds the size of a search request body.
const maxRequestBytes = 1 << 20

// Searcher runs one search.
type Searcher interface {
	Search(ctx context.Context, req service.Request) (*service.Result, error)
}

// Pinger checks backing dependencies for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server routes HTTP requests to a Searcher.
type Server struct {
	searcher       Searcher
	pinger         Pinger
	requestTimeout time.Duration
	logger         zerolog.Logger
}

// New creates a server. pinger may be nil.
func New(searcher Searcher, pinger Pinger, requestTimeout time.Duration, logger zerolog.Logger) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Minute
	}
	return &Server{
		searcher:       searcher,
		pinger:         pinger,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /search", s.searchHandler)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting search server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info().Msg("Shutting down search server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type errorResponse struct {
	Error   string `json:"error"`
	Class   string `json:"class,omitempty"`
	Offsets []int  `json:"offsets,omitempty"`
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req service.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "decode request: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	res, err := s.searcher.Search(ctx, req)
	if err != nil {
		status, body := errorStatus(err)
		s.logger.Warn().Err(err).Int("status", status).Str("jql", req.JQL).Msg("Search request failed")
		writeJSON(w, status, body)
		return
	}

	s.logger.Debug().
		Str("jql", req.JQL).
		Int("count", res.Count).
		Bool("from_cache", res.FromCache).
		Msg("Search request served")
	writeJSON(w, http.StatusOK, res)
}

// errorStatus maps search errors to HTTP answers. Failures talking to the
// tracker are the upstream's fault and answered with 502.
func errorStatus(err error) (int, errorResponse) {
	body := errorResponse{Error: err.Error()}

	var searchErr *pagination.SearchError
	if errors.As(err, &searchErr) {
		body.Class = string(searchErr.Class)
		body.Offsets = searchErr.Offsets
	}

	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, body
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, body
	case searchErr != nil:
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
