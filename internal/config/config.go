// Package config provides Viper-based configuration for the jira-search CLI.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sternrassler/jira-search-client/pkg/cache"
	"github.com/Sternrassler/jira-search-client/pkg/client"
	"github.com/Sternrassler/jira-search-client/pkg/credentials"
	"github.com/Sternrassler/jira-search-client/pkg/logging"
	"github.com/Sternrassler/jira-search-client/pkg/pagination"
	"github.com/Sternrassler/jira-search-client/pkg/query"
	"github.com/Sternrassler/jira-search-client/pkg/ratelimit"
)

// EnvPrefix is prepended to every environment override, e.g.
// JIRA_SEARCH_SERVER_BASE_URL for server.base_url.
const EnvPrefix = "JIRA_SEARCH"

// Config represents the complete jira-search configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Search    SearchConfig    `mapstructure:"search"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Serve     ServeConfig     `mapstructure:"serve"`
}

// ServerConfig describes the tracker being searched
type ServerConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	SearchPath string        `mapstructure:"search_path"`
	UserAgent  string        `mapstructure:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Proxy      ProxyConfig   `mapstructure:"proxy"`
}

// ProxyConfig contains forward proxy settings
type ProxyConfig struct {
	URL      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// AuthConfig contains tracker credentials
type AuthConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`

	// Prompt asks on the terminal when no credentials are configured.
	Prompt bool `mapstructure:"prompt"`
}

// SearchConfig contains paging and retry settings
type SearchConfig struct {
	PageSize         int           `mapstructure:"page_size"`
	Concurrency      int           `mapstructure:"concurrency"`
	PageTimeout      time.Duration `mapstructure:"page_timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	MaxParseAttempts int           `mapstructure:"max_parse_attempts"`
	InitialBackoff   time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff"`
}

// RateLimitConfig contains the local request budget
type RateLimitConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Throttle          time.Duration `mapstructure:"throttle"`
}

// CacheConfig contains records cache settings. RedisURL, when set, replaces
// the file store and also shares rate limit state.
type CacheConfig struct {
	Dir        string        `mapstructure:"dir"`
	Window     time.Duration `mapstructure:"window"`
	MemorySize int           `mapstructure:"memory_size"`
	RedisURL   string        `mapstructure:"redis_url"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// MetricsConfig contains the Prometheus endpoint settings
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ServeConfig contains settings of the search HTTP service
type ServeConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Load reads configuration from file and environment variables. An empty
// cfgFile searches .jira-search.yaml in the working directory and in
// $HOME/.config/jira-search; a missing file is not an error.
func Load(cfgFile string) (*Config, error) {
	return load(viper.New(), cfgFile)
}

// LoadWith is Load on a caller owned viper instance, so CLI flags bound to
// v take part in the merge.
func LoadWith(v *viper.Viper, cfgFile string) (*Config, error) {
	return load(v, cfgFile)
}

func load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".jira-search")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/jira-search")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values. Every key needs a default so
// AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.search_path", client.DefaultSearchPath)
	v.SetDefault("server.user_agent", "jira-search-client/0.1.0")
	v.SetDefault("server.timeout", 60*time.Second)
	v.SetDefault("server.proxy.url", "")
	v.SetDefault("server.proxy.user", "")
	v.SetDefault("server.proxy.password", "")

	v.SetDefault("auth.user", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.prompt", true)

	searcher := pagination.DefaultConfig()
	v.SetDefault("search.page_size", query.DefaultPageSize)
	v.SetDefault("search.concurrency", searcher.MaxConcurrency)
	v.SetDefault("search.page_timeout", searcher.Timeout)
	v.SetDefault("search.max_attempts", searcher.Retry.MaxAttempts)
	v.SetDefault("search.max_parse_attempts", searcher.Retry.MaxParseAttempts)
	v.SetDefault("search.initial_backoff", searcher.Retry.InitialBackoff)
	v.SetDefault("search.max_backoff", searcher.Retry.MaxBackoff)

	limits := ratelimit.DefaultConfig()
	v.SetDefault("rate_limit.requests_per_second", limits.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", limits.Burst)
	v.SetDefault("rate_limit.throttle", limits.Throttle)

	v.SetDefault("cache.dir", ".jira-cache")
	v.SetDefault("cache.window", cache.DefaultWindow)
	v.SetDefault("cache.memory_size", cache.DefaultConfig().MemorySize)
	v.SetDefault("cache.redis_url", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("serve.request_timeout", 5*time.Minute)
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if cfg.Server.BaseURL != "" {
		u, err := url.Parse(cfg.Server.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid server.base_url: %q", cfg.Server.BaseURL)
		}
	}
	if cfg.Server.UserAgent == "" {
		return fmt.Errorf("server.user_agent must not be empty")
	}

	if cfg.Search.PageSize <= 0 {
		return fmt.Errorf("search.page_size must be positive (got %d)", cfg.Search.PageSize)
	}
	if cfg.Search.Concurrency <= 0 {
		return fmt.Errorf("search.concurrency must be positive (got %d)", cfg.Search.Concurrency)
	}
	if cfg.Search.MaxAttempts <= 0 {
		return fmt.Errorf("search.max_attempts must be positive (got %d)", cfg.Search.MaxAttempts)
	}
	if cfg.Search.PageTimeout <= 0 {
		return fmt.Errorf("search.page_timeout must be positive (got %s)", cfg.Search.PageTimeout)
	}

	if cfg.Cache.Window <= 0 {
		return fmt.Errorf("cache.window must be positive (got %s)", cfg.Cache.Window)
	}

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging level: %w", err)
	}

	return nil
}

// SearcherConfig returns the searcher settings.
func (c *Config) SearcherConfig() pagination.Config {
	return pagination.Config{
		MaxConcurrency: c.Search.Concurrency,
		Timeout:        c.Search.PageTimeout,
		Retry: pagination.RetryPolicy{
			MaxAttempts:       c.Search.MaxAttempts,
			MaxParseAttempts:  c.Search.MaxParseAttempts,
			InitialBackoff:    c.Search.InitialBackoff,
			MaxBackoff:        c.Search.MaxBackoff,
			BackoffMultiplier: pagination.DefaultRetryPolicy().BackoffMultiplier,
		},
	}
}

// ClientConfig returns the HTTP client settings, authenticated with creds.
func (c *Config) ClientConfig(creds credentials.Credentials) client.Config {
	cfg := client.DefaultConfig(c.Server.BaseURL, c.Server.UserAgent)
	cfg.SearchPath = c.Server.SearchPath
	cfg.Timeout = c.Server.Timeout
	cfg.Authorization = creds.AuthorizationHeader()
	cfg.ProxyURL = c.Server.Proxy.URL
	cfg.ProxyUser = c.Server.Proxy.User
	cfg.ProxyPassword = c.Server.Proxy.Password
	return cfg
}

// RateLimitConfig returns the local request budget.
func (c *Config) RateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		RequestsPerSecond: c.RateLimit.RequestsPerSecond,
		Burst:             c.RateLimit.Burst,
		Throttle:          c.RateLimit.Throttle,
	}
}

// CacheConfig returns the cache manager settings.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Window:     c.Cache.Window,
		MemorySize: c.Cache.MemorySize,
	}
}

// Credentials returns the configured credentials, which may be empty.
func (c *Config) Credentials() credentials.Credentials {
	return credentials.Credentials{
		Username: c.Auth.User,
		Password: c.Auth.Password,
		Token:    c.Auth.Token,
	}
}

// LoggingConfig returns the logger setup. The level was validated by Load.
func (c *Config) LoggingConfig() logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.Logging.Pretty
	return cfg
}
