// Package backoff provides retry delay strategies and a clock-driven retry
// loop. The heartbeat loop uses it to retry a failed heartbeat before the
// next tick is due. All strategies are safe for concurrent use (they are
// stateless).
package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration { return c.Interval }

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration

	// Jitter, when set, draws the delay uniformly from [0, delay] so
	// conductors that lost the store at the same moment do not retry in
	// lockstep.
	Jitter bool
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay, Jitter: true}
}

// Delay returns Initial * 2^(attempt-1), capped at Max, jittered if asked.
// A zero Max caps at the largest time.Duration.
func (e *Exponential) Delay(attempt int) time.Duration {
	ceiling := time.Duration(math.MaxInt64)
	if e.Max > 0 {
		ceiling = e.Max
	}
	d := ceiling
	if base := float64(e.Initial) * math.Pow(2, float64(attempt-1)); base < float64(ceiling) {
		d = time.Duration(base)
	}
	if e.Jitter {
		d = time.Duration(float64(d) * rand.Float64()) //nolint:gosec // jitter intentionally uses non-crypto rand
	}
	return d
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the heartbeat retry strategy for the given
// heartbeat interval: jittered exponential from interval/10, capped at
// interval/2.
func DefaultStrategy(interval time.Duration) Strategy {
	return NewExponentialWithJitter(interval/10, interval/2)
}

// ──────────────────────────────────────────────────
// Retry loop
// ──────────────────────────────────────────────────

// Retry calls fn until it succeeds, ctx is done, or the next delay would
// push the total time spent waiting past budget. fn receives the 1-indexed
// attempt number. The last error from fn is returned; a cancelled context
// returns ctx.Err().
func Retry(ctx context.Context, clk clock.Clock, s Strategy, budget time.Duration, fn func(ctx context.Context, attempt int) error) error {
	var waited time.Duration
	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		d := s.Delay(attempt)
		if d > budget-waited {
			return err
		}
		waited += d

		t := clk.Timer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
