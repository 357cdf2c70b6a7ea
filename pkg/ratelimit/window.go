// Package ratelimit paces outbound Lever API requests.
//
// Lever enforces 10 requests per second per API key. Window keeps callers
// under a configured ceiling over any rolling period and admits them in
// arrival order. RedisWindow extends the ceiling across processes that
// share one API key.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults for the Lever API.
const (
	// VendorLimit is Lever's hard ceiling in requests per second.
	VendorLimit = 10

	// DefaultMax is the configured ceiling; it stays below VendorLimit.
	DefaultMax = 8

	// DefaultPeriod is the rolling window length.
	DefaultPeriod = time.Second
)

// Limiter gates outbound requests. Acquire blocks until one more request
// may be sent and only fails when ctx is done.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Clock abstracts time so tests can drive the window deterministically.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Window is a sliding-window log limiter. It remembers the slot times of
// the last max grants; a new caller gets the later of "now" and the oldest
// remembered slot plus one period. Slots are handed out under the mutex in
// arrival order and never decrease, so grants are FIFO and no period ever
// holds more than max of them.
type Window struct {
	max    int
	period time.Duration
	clock  Clock
	logger zerolog.Logger

	mu    sync.Mutex
	slots []time.Time
	next  int
	count int
}

// NewWindow creates a limiter admitting at most max requests per period.
func NewWindow(max int, period time.Duration, logger zerolog.Logger) (*Window, error) {
	if max < 1 {
		return nil, fmt.Errorf("rate limit must be at least 1 request per period (got %d)", max)
	}
	if period <= 0 {
		return nil, fmt.Errorf("rate limit period must be positive (got %s)", period)
	}

	return &Window{
		max:    max,
		period: period,
		clock:  SystemClock,
		logger: logger.With().Str("component", "rate-limiter").Logger(),
		slots:  make([]time.Time, max),
	}, nil
}

// SetClock replaces the clock (for testing).
func (w *Window) SetClock(c Clock) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clock = c
}

func (w *Window) currentClock() Clock {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clock
}

// Max returns the number of requests admitted per period.
func (w *Window) Max() int { return w.max }

// Period returns the window length.
func (w *Window) Period() time.Duration { return w.period }

// Acquire waits for the caller's slot. A cancelled caller forfeits its slot;
// that can only delay later callers, never over-admit them.
func (w *Window) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	slot, now, clock := w.reserve()
	wait := slot.Sub(now)
	rateLimitWaitSeconds.Observe(max(wait, 0).Seconds())

	if wait <= 0 {
		rateLimitAcquiredTotal.Inc()
		return nil
	}

	rateLimitWaiting.Inc()
	defer rateLimitWaiting.Dec()

	w.logger.Debug().
		Dur("wait", wait).
		Int("max", w.max).
		Dur("period", w.period).
		Msg("Rate limit window full, waiting for slot")

	select {
	case <-ctx.Done():
		w.logger.Debug().Err(ctx.Err()).Msg("Gave up waiting for rate limit slot")
		return ctx.Err()
	case <-clock.After(wait):
	}

	rateLimitAcquiredTotal.Inc()
	return nil
}

// reserve books the next slot and returns it together with the time it was
// booked at.
func (w *Window) reserve() (slot, now time.Time, clock Clock) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now = w.clock.Now()
	slot = now

	if w.count == w.max {
		// slots[next] holds the oldest of the last max grants.
		if earliest := w.slots[w.next].Add(w.period); earliest.After(slot) {
			slot = earliest
		}
	}
	if w.count > 0 {
		if last := w.slots[(w.next+w.max-1)%w.max]; last.After(slot) {
			slot = last
		}
	}

	w.slots[w.next] = slot
	w.next = (w.next + 1) % w.max
	if w.count < w.max {
		w.count++
	}

	return slot, now, w.clock
}
