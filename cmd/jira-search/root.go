package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sternrassler/jira-search-client/internal/config"
	"github.com/Sternrassler/jira-search-client/pkg/credentials"
	"github.com/Sternrassler/jira-search-client/pkg/logging"
)

const defaultEnvFile = ".env"

// flagKeys maps CLI flags to the configuration keys they override.
var flagKeys = map[string]string{
	"log-level":    "logging.level",
	"pretty":       "logging.pretty",
	"page-size":    "search.page_size",
	"concurrency":  "search.concurrency",
	"max-attempts": "search.max_attempts",
	"cache-dir":    "cache.dir",
	"redis-url":    "cache.redis_url",
	"metrics-addr": "metrics.addr",
	"addr":         "serve.addr",
}

// cli carries state shared by all commands of one invocation.
type cli struct {
	cfgFile string
	envFile string

	cfg    *config.Config
	logger zerolog.Logger

	// prompter asks for credentials when none are configured.
	prompter *credentials.Prompter
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&cli{})
}

func newRootCmdWith(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jira-search",
		Short: "Paginated JQL search client",
		Long: `jira-search fetches every issue matching a JQL query from a Jira server.

The first page reports the total result size; all remaining pages are then
fetched concurrently and failed pages are retried in rounds with backoff.

Example usage:
  jira-search search --jql "project = FPB"                 # print issues as JSON
  jira-search search --jql "project = FPB" --cache fpb     # reuse results for 2h
  jira-search serve --addr :8080                           # HTTP search service`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is .jira-search.yaml)")
	rootCmd.PersistentFlags().StringVar(&c.envFile, "env-file", defaultEnvFile, "dotenv file with JIRA_SEARCH_* variables")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human readable log output")

	rootCmd.AddCommand(newSearchCmd(c), newServeCmd(c), newVersionCmd())
	return rootCmd
}

// initConfig loads the dotenv file, configuration file, environment and
// flags, in increasing precedence, and sets up logging.
func (c *cli) initConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(c.envFile); err != nil {
		if c.envFile != defaultEnvFile || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading env file: %w", err)
		}
	}

	v := viper.New()
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	cfg, err := config.LoadWith(v, c.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	c.cfg = cfg

	logCfg := cfg.LoggingConfig()
	logCfg.Output = cmd.ErrOrStderr()
	c.logger = logging.Setup(logCfg)

	c.logger.Debug().
		Str("base_url", cfg.Server.BaseURL).
		Int("page_size", cfg.Search.PageSize).
		Int("concurrency", cfg.Search.Concurrency).
		Bool("redis", cfg.Cache.RedisURL != "").
		Msg("Configuration loaded")

	return nil
}

// credentials resolves configured credentials, prompting on the terminal
// when allowed.
func (c *cli) credentials() (credentials.Credentials, error) {
	var prompter *credentials.Prompter
	if c.cfg.Auth.Prompt {
		prompter = c.prompter
		if prompter == nil {
			prompter = credentials.NewTerminalPrompter()
		}
	}
	return credentials.Resolve(c.cfg.Credentials(), prompter)
}
