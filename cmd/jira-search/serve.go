package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/jira-search-client/internal/server"
	"github.com/Sternrassler/jira-search-client/internal/service"
	"github.com/Sternrassler/jira-search-client/pkg/logging"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve searches over HTTP",
		Long: `Serve searches over HTTP.

Routes:
  POST /search   {"jql": "...", "fields": [...], "page_size": 100, "cache": "name"}
  GET  /health   liveness
  GET  /ready    readiness, pings Redis when configured
  GET  /metrics  Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// No terminal to prompt on while serving.
			c.cfg.Auth.Prompt = false
			creds, err := c.credentials()
			if err != nil {
				return fmt.Errorf("resolving credentials: %w", err)
			}

			svc, err := service.New(ctx, c.cfg, creds, c.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			srv := server.New(svc, svc, c.cfg.Serve.RequestTimeout, logging.NewLogger("server"))
			return srv.ListenAndServe(ctx, c.cfg.Serve.Addr)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8080)")
	return cmd
}
