package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRedisKey is the sorted set holding shared grant timestamps.
const DefaultRedisKey = "lever:ratelimit:window"

// slidingWindowScript prunes grants older than one window and either records
// a new grant (returns 0) or returns the milliseconds until the oldest grant
// leaves the window.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window)
	return 0
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = tonumber(oldest[2]) + window - now
if wait < 1 then
	wait = 1
end
return wait
`)

// RedisWindow shares one rolling window between every process using the
// same API key. Each caller first passes the in-process Window, which keeps
// FIFO order locally, then books a grant in Redis.
//
// Redis failures never block traffic: the limiter logs them and falls back
// to the local window alone.
type RedisWindow struct {
	rdb    *redis.Client
	key    string
	max    int
	period time.Duration
	local  *Window
	logger zerolog.Logger
}

// NewRedisWindow wraps local with a Redis-backed window of the same size.
func NewRedisWindow(rdb *redis.Client, key string, local *Window, logger zerolog.Logger) *RedisWindow {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisWindow{
		rdb:    rdb,
		key:    key,
		max:    local.Max(),
		period: local.Period(),
		local:  local,
		logger: logger.With().Str("component", "rate-limiter").Str("backend", "redis").Logger(),
	}
}

// Acquire waits for a slot in both the local and the shared window.
func (r *RedisWindow) Acquire(ctx context.Context) error {
	if err := r.local.Acquire(ctx); err != nil {
		return err
	}

	clock := r.local.currentClock()
	for {
		wait, err := r.book(ctx, clock.Now())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rateLimitRedisErrorsTotal.Inc()
			r.logger.Warn().Err(err).Msg("Shared rate limit check failed, using local window only")
			return nil
		}
		if wait <= 0 {
			return nil
		}

		r.logger.Debug().Dur("wait", wait).Msg("Shared rate limit window full, waiting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(wait):
		}
	}
}

// book tries to record one grant at now and returns how long to wait if the
// shared window is full.
func (r *RedisWindow) book(ctx context.Context, now time.Time) (time.Duration, error) {
	nowMs := now.UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	waitMs, err := slidingWindowScript.Run(ctx, r.rdb, []string{r.key},
		nowMs, r.period.Milliseconds(), r.max, member).Int64()
	if err != nil {
		return 0, fmt.Errorf("run sliding window script: %w", err)
	}

	return time.Duration(waitMs) * time.Millisecond, nil
}
