package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// newBackOff returns the delay schedule for one logical operation: ±20%
// jitter around an exponentially growing interval.
func (c RetryConfig) newBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialBackoff,
		RandomizationFactor: 0.2,
		Multiplier:          c.BackoffMultiplier,
		MaxInterval:         c.MaxBackoff,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// retryWithBackoff runs attempts until one succeeds, a permanent error
// occurs, the caller's context ends, or the attempt budget is spent.
func (e *Executor) retryWithBackoff(ctx context.Context, req *Request, route string) (*Response, error) {
	cfg := e.config.Retry
	schedule := cfg.newBackOff()
	span := trace.SpanFromContext(ctx)
	logger := e.logger.With().
		Str("operation", req.Operation).
		Str("method", req.method()).
		Str("route", route).
		Logger()

	var lastErr *attemptError

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		resp, err := e.attempt(ctx, req, route, attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return resp, nil
		}

		if !errors.As(err, &lastErr) || !shouldRetry(lastErr.class) {
			return nil, err
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		wait := schedule.NextBackOff()
		if lastErr.retryAfter > wait {
			wait = lastErr.retryAfter
		}

		errorClass := string(lastErr.class)
		retriesTotal.WithLabelValues(errorClass).Inc()
		retryBackoffSeconds.WithLabelValues(errorClass).Observe(wait.Seconds())
		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("error_class", errorClass),
			attribute.String("backoff", wait.String()),
		))

		logger.Debug().
			Str("error_class", errorClass).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Str("error_class", errorClass).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-e.clock.After(wait):
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastErr.class)).Inc()
	logger.Warn().
		Str("error_class", string(lastErr.class)).
		Int("max_attempts", cfg.MaxAttempts).
		Int("last_status", lastErr.status).
		Msg("Retry attempts exhausted")

	return nil, &TransientError{
		Operation:  req.Operation,
		Route:      route,
		Attempts:   cfg.MaxAttempts,
		LastStatus: lastErr.status,
		LastClass:  lastErr.class,
		Reason:     ErrRetryExhausted,
		Err:        lastErr,
	}
}

// parseRetryAfter reads a Retry-After header given either in seconds or as
// an HTTP-date. It returns 0 when absent or unparseable.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
