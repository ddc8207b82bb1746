// Package poll waits on external executions at a fixed cadence.
package poll

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrExhausted is returned when the policy runs out of attempts before the
// condition is met.
var ErrExhausted = errors.New("poll attempts exhausted")

// Policy bounds a polling loop.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// Timeout builds a policy that polls every interval until timeout has elapsed.
func Timeout(interval, timeout time.Duration) Policy {
	if interval <= 0 {
		return Policy{Interval: 0, MaxAttempts: 1}
	}
	attempts := int(timeout / interval)
	if timeout%interval != 0 {
		attempts++
	}
	if attempts < 1 {
		attempts = 1
	}
	return Policy{Interval: interval, MaxAttempts: attempts}
}

// Until calls check until it reports done, returns an error, the context is
// cancelled, or MaxAttempts checks have been made. The first check runs
// immediately and later checks wait Interval between them.
func Until(ctx context.Context, p Policy, check func(ctx context.Context, attempt int) (bool, error)) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var limiter *rate.Limiter
	if p.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(p.Interval), 1)
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		done, err := check(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return ErrExhausted
}
