// Package backoff wraps cenkalti/backoff's exponential schedule in a
// value-type policy with an injectable sleeper, so retry loops can be tested
// without waiting.
package backoff

import (
	"context"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second

	multiplier = 2
	maxSteps   = 64
)

// Sleeper blocks for the given duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// RealSleeper waits on a timer.
var RealSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
})

// Policy is a bounded exponential retry schedule. Each step doubles from
// BaseDelay up to MaxDelay; Randomization spreads a step d over
// [d*(1-r), d*(1+r)] and must be in [0, 1).
type Policy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	Randomization float64
}

// Default returns the three-attempt, one-second-base policy.
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Normalize fills zero values with defaults and clamps Randomization.
func (p Policy) Normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Randomization < 0 || p.Randomization >= 1 {
		p.Randomization = 0
	}
	return p
}

func (p Policy) schedule() *cbackoff.ExponentialBackOff {
	b := cbackoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = multiplier
	b.RandomizationFactor = p.Randomization
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Delay returns how long to wait after the given zero-based attempt failed.
// A positive hint (e.g. Retry-After) replaces the schedule. Either way the
// result never exceeds MaxDelay.
func (p Policy) Delay(attempt int, hint time.Duration) time.Duration {
	p = p.Normalize()
	d := hint
	if d <= 0 {
		attempt = min(max(attempt, 0), maxSteps)
		b := p.schedule()
		for i := 0; i <= attempt; i++ {
			d = b.NextBackOff()
		}
	}
	return min(d, p.MaxDelay)
}

// HasNext reports whether another attempt is allowed after attempt (zero-based).
func (p Policy) HasNext(attempt int) bool {
	return attempt+1 < p.Normalize().MaxAttempts
}
