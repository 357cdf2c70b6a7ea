package client

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerConfig controls the circuit breaker around logical operations.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker; 0 disables it.
	ConsecutiveFailures int

	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// newBreaker counts only transient failures: a 404 or a cancelled caller
// says nothing about Lever's health.
func newBreaker(cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	if cfg.ConsecutiveFailures <= 0 {
		return nil
	}

	threshold := uint32(cfg.ConsecutiveFailures)

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "lever-api",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			var transient *TransientError
			return !errors.As(err, &transient)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				circuitOpen.Set(1)
			} else {
				circuitOpen.Set(0)
			}
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}
