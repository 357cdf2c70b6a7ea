// Package config loads the adapter configuration from an optional YAML
// file, a .env file and LEVER_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. LEVER_API_KEY or
// LEVER_RATE_LIMIT_REQUESTS_PER_SECOND.
const EnvPrefix = "LEVER"

// vendorLimit is Lever's documented steady-state ceiling; the configured
// rate must stay strictly below it.
const vendorLimit = 10

// Config is the complete adapter configuration.
type Config struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	AuthScheme string `mapstructure:"auth_scheme"`
	UserAgent  string `mapstructure:"user_agent"`

	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Retry      RetryConfig      `mapstructure:"retry"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Server     ServerConfig     `mapstructure:"server"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// RateLimitConfig configures the request pacing.
type RateLimitConfig struct {
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
	Period            time.Duration `mapstructure:"period"`

	// RedisURL enables a window shared by every process using the same
	// API key. Empty keeps the limiter process-local.
	RedisURL string `mapstructure:"redis_url"`
	RedisKey string `mapstructure:"redis_key"`
}

// PaginationConfig configures list walks and client-side searches.
type PaginationConfig struct {
	PageSize          int  `mapstructure:"page_size"`
	DefaultLimit      int  `mapstructure:"default_limit"`
	MaxLimit          int  `mapstructure:"max_limit"`
	ScanLimit         int  `mapstructure:"scan_limit"`
	PartialOnDeadline bool `mapstructure:"partial_on_deadline"`
}

// RetryConfig configures transient failure retries.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
}

// HTTPConfig configures single attempts.
type HTTPConfig struct {
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// BreakerConfig configures the circuit breaker. ConsecutiveFailures 0
// disables it.
type BreakerConfig struct {
	ConsecutiveFailures int           `mapstructure:"consecutive_failures"`
	OpenTimeout         time.Duration `mapstructure:"open_timeout"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the HTTP tool server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TracingConfig configures OpenTelemetry export. An empty endpoint turns
// tracing off.
type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
	ServiceName  string `mapstructure:"service_name"`
}

// ConfigError reports a missing or invalid setting.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// Load reads the configuration. path names a config file; when empty,
// config.yaml is looked up in the working directory and in
// ~/.lever-tools, and a missing file is not an error. A .env file in the
// working directory is loaded first without overriding the environment.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".lever-tools"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.AuthScheme = strings.ToLower(strings.TrimSpace(cfg.AuthScheme))
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(name string) error {
	if _, err := os.Stat(name); err != nil {
		return nil
	}
	if err := godotenv.Load(name); err != nil {
		return fmt.Errorf("error reading %s: %w", name, err)
	}
	return nil
}

// setDefaults sets default configuration values. Every key needs one so
// that AutomaticEnv picks it up during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "https://api.lever.co/v1")
	v.SetDefault("auth_scheme", "basic")
	v.SetDefault("user_agent", "lever-ats-client/0.1.0")

	v.SetDefault("rate_limit.requests_per_second", 8)
	v.SetDefault("rate_limit.period", time.Second)
	v.SetDefault("rate_limit.redis_url", "")
	v.SetDefault("rate_limit.redis_key", "lever:ratelimit:window")

	v.SetDefault("pagination.page_size", 100)
	v.SetDefault("pagination.default_limit", 100)
	v.SetDefault("pagination.max_limit", 500)
	v.SetDefault("pagination.scan_limit", 500)
	v.SetDefault("pagination.partial_on_deadline", true)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", 500*time.Millisecond)
	v.SetDefault("retry.max_backoff", 10*time.Second)
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("http.attempt_timeout", 30*time.Second)

	v.SetDefault("breaker.consecutive_failures", 5)
	v.SetDefault("breaker.open_timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "lever-tools")
}

// Validate checks the configuration and returns the first problem as a
// *ConfigError.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return &ConfigError{Field: "api_key", Reason: "is required (set LEVER_API_KEY)"}
	}

	if c.BaseURL == "" {
		return &ConfigError{Field: "base_url", Reason: "is required"}
	}

	switch c.AuthScheme {
	case "basic", "bearer":
	default:
		return &ConfigError{Field: "auth_scheme", Reason: fmt.Sprintf("must be basic or bearer (got %q)", c.AuthScheme)}
	}

	if c.RateLimit.RequestsPerSecond < 1 || c.RateLimit.RequestsPerSecond >= vendorLimit {
		return &ConfigError{
			Field:  "rate_limit.requests_per_second",
			Reason: fmt.Sprintf("must be between 1 and %d (got %d)", vendorLimit-1, c.RateLimit.RequestsPerSecond),
		}
	}
	if c.RateLimit.Period < time.Second {
		return &ConfigError{Field: "rate_limit.period", Reason: fmt.Sprintf("must be at least 1s (got %s)", c.RateLimit.Period)}
	}

	p := c.Pagination
	if p.PageSize < 1 || p.PageSize > 100 {
		return &ConfigError{Field: "pagination.page_size", Reason: fmt.Sprintf("must be between 1 and 100 (got %d)", p.PageSize)}
	}
	if p.MaxLimit < 1 {
		return &ConfigError{Field: "pagination.max_limit", Reason: "must be positive"}
	}
	if p.DefaultLimit < 1 || p.DefaultLimit > p.MaxLimit {
		return &ConfigError{Field: "pagination.default_limit", Reason: fmt.Sprintf("must be between 1 and max_limit %d", p.MaxLimit)}
	}
	if p.ScanLimit < 1 {
		return &ConfigError{Field: "pagination.scan_limit", Reason: "must be positive"}
	}

	r := c.Retry
	if r.MaxAttempts < 1 {
		return &ConfigError{Field: "retry.max_attempts", Reason: "must be at least 1"}
	}
	if r.InitialBackoff <= 0 || r.MaxBackoff < r.InitialBackoff {
		return &ConfigError{Field: "retry.initial_backoff", Reason: "must be positive and not above retry.max_backoff"}
	}
	if r.Multiplier < 1 {
		return &ConfigError{Field: "retry.multiplier", Reason: "must be at least 1"}
	}

	if c.HTTP.AttemptTimeout <= 0 {
		return &ConfigError{Field: "http.attempt_timeout", Reason: "must be positive"}
	}

	if c.Breaker.ConsecutiveFailures < 0 {
		return &ConfigError{Field: "breaker.consecutive_failures", Reason: "must not be negative"}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return &ConfigError{Field: "logging.level", Reason: fmt.Sprintf("invalid level %q", c.Logging.Level)}
	}

	validFormats := map[string]bool{"auto": true, "console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return &ConfigError{Field: "logging.format", Reason: fmt.Sprintf("invalid format %q", c.Logging.Format)}
	}

	return nil
}
