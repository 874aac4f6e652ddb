package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/jira-search-client/internal/service"
	"github.com/Sternrassler/jira-search-client/pkg/metrics"
)

type searchOptions struct {
	jql    string
	fields []string
	cache  string
	output string
}

func newSearchCmd(c *cli) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Fetch every issue matching a JQL query",
		Long: `Fetch every issue matching a JQL query and write them as a JSON array.

The search fails with a non-zero exit code when the first page cannot be
fetched or when any page runs out of retry attempts; partial results are
never written.`,
		Example: `  jira-search search --jql "project = FPB" --fields summary,status
  jira-search search --jql "assignee = currentUser()" --cache mine --output mine.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSearch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.jql, "jql", "", "JQL filter expression (required)")
	cmd.Flags().StringSliceVar(&opts.fields, "fields", nil, "fields to return (default: summary,status,issuetype,priority,assignee,updated)")
	cmd.Flags().Int("page-size", 0, "issues per page")
	cmd.Flags().Int("concurrency", 0, "maximum pages in flight")
	cmd.Flags().Int("max-attempts", 0, "attempts per page before the search fails")
	cmd.Flags().StringVar(&opts.cache, "cache", "", "cache results under this name")
	cmd.Flags().String("cache-dir", "", "directory for cached results")
	cmd.Flags().String("redis-url", "", "Redis URL for cached results and shared rate limit state")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while searching")
	_ = cmd.MarkFlagRequired("jql")

	return cmd
}

func (c *cli) runSearch(cmd *cobra.Command, opts *searchOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := c.credentials()
	if err != nil {
		return fmt.Errorf("resolving credentials: %w", err)
	}

	svc, err := service.New(ctx, c.cfg, creds, c.logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	if addr := c.cfg.Metrics.Addr; addr != "" {
		shutdown := c.serveMetrics(addr)
		defer shutdown()
	}

	start := time.Now()
	res, err := svc.Search(ctx, service.Request{
		JQL:    opts.jql,
		Fields: opts.fields,
		Cache:  opts.cache,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if err := writeIssues(cmd.OutOrStdout(), opts.output, res); err != nil {
		return err
	}

	c.logger.Info().
		Int("total", res.Total).
		Int("issues", res.Count).
		Bool("from_cache", res.FromCache).
		Str("output", opts.output).
		Dur("duration", time.Since(start)).
		Msg("Search finished")

	return nil
}

// writeIssues writes the issues to path, or to stdout for "-". Files are
// only created once the search has succeeded.
func writeIssues(stdout io.Writer, path string, res *service.Result) error {
	data, err := json.MarshalIndent(res.Issues, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding issues: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// serveMetrics exposes the Prometheus registry until the returned function
// is called.
func (c *cli) serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		c.logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
