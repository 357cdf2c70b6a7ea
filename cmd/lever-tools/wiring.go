package main

import (
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/lever-ats-client/pkg/client"
	"github.com/Sternrassler/lever-ats-client/pkg/config"
	"github.com/Sternrassler/lever-ats-client/pkg/lever"
	"github.com/Sternrassler/lever-ats-client/pkg/logging"
	"github.com/Sternrassler/lever-ats-client/pkg/pagination"
	"github.com/Sternrassler/lever-ats-client/pkg/ratelimit"
	"github.com/Sternrassler/lever-ats-client/pkg/tools"
)

// redisHandle is the optional shared limiter backend. Client is nil when no
// Redis URL is configured.
type redisHandle struct {
	Client *redis.Client
}

func newRedis(cfg *config.Config) (redisHandle, error) {
	if cfg.RateLimit.RedisURL == "" {
		return redisHandle{}, nil
	}
	opts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
	if err != nil {
		return redisHandle{}, &config.ConfigError{Field: "rate_limit.redis_url", Reason: err.Error()}
	}
	return redisHandle{Client: redis.NewClient(opts)}, nil
}

func newLimiter(cfg *config.Config, rh redisHandle) (ratelimit.Limiter, error) {
	window, err := ratelimit.NewWindow(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Period, log.Logger)
	if err != nil {
		return nil, err
	}
	if rh.Client == nil {
		return window, nil
	}
	return ratelimit.NewRedisWindow(rh.Client, cfg.RateLimit.RedisKey, window, log.Logger), nil
}

func newExecutor(cfg *config.Config, limiter ratelimit.Limiter) (*client.Executor, error) {
	cc := client.DefaultConfig(cfg.APIKey, limiter)
	cc.BaseURL = cfg.BaseURL
	cc.AuthScheme = client.AuthScheme(cfg.AuthScheme)
	cc.UserAgent = cfg.UserAgent
	cc.AttemptTimeout = cfg.HTTP.AttemptTimeout
	cc.Retry = client.RetryConfig{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoff:    cfg.Retry.InitialBackoff,
		MaxBackoff:        cfg.Retry.MaxBackoff,
		BackoffMultiplier: cfg.Retry.Multiplier,
	}
	cc.Breaker = client.BreakerConfig{
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		OpenTimeout:         cfg.Breaker.OpenTimeout,
	}

	exec, err := client.New(cc)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("base_url", cfg.BaseURL).
		Str("api_key", logging.Redact(cfg.APIKey)).
		Str("auth_scheme", cfg.AuthScheme).
		Int("requests_per_second", cfg.RateLimit.RequestsPerSecond).
		Bool("shared_limiter", cfg.RateLimit.RedisURL != "").
		Msg("Lever client configured")

	return exec, nil
}

func newLeverClient(cfg *config.Config, exec *client.Executor) *lever.Client {
	return lever.New(exec, lever.Config{
		Pagination: pagination.Config{
			PageSize:          cfg.Pagination.PageSize,
			PartialOnDeadline: cfg.Pagination.PartialOnDeadline,
		},
		ScanLimit:    cfg.Pagination.ScanLimit,
		DefaultLimit: cfg.Pagination.DefaultLimit,
		MaxLimit:     cfg.Pagination.MaxLimit,
	})
}

// buildRegistry wires the full stack for one-shot commands. The returned
// cleanup closes the Redis connection, if any.
func buildRegistry(cfg *config.Config) (*tools.Registry, func(), error) {
	rh, err := newRedis(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if rh.Client != nil {
			rh.Client.Close()
		}
	}

	limiter, err := newLimiter(cfg, rh)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	exec, err := newExecutor(cfg, limiter)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return tools.NewRegistry(newLeverClient(cfg, exec)), cleanup, nil
}
