// Package poll waits for eventually-consistent platform operations such as
// asynchronous deletes and instance boots.
package poll

import (
	"context"
	"time"
)

// Outcome is the result of a poll loop.
type Outcome int

const (
	// Done means the check reported the condition as reached.
	Done Outcome = iota
	// NotDone means the attempt budget ran out before the condition held.
	NotDone
	// TimedOut means the context was cancelled or its deadline passed.
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case NotDone:
		return "not-done"
	case TimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Check reports whether the awaited condition holds. A non-nil error aborts
// the loop.
type Check func(ctx context.Context) (bool, error)

// Config controls poll behavior.
type Config struct {
	// MaxAttempts is the number of checks performed before giving up.
	MaxAttempts int
	// Interval is the delay before the first check. Later delays double
	// until they reach MaxInterval.
	Interval time.Duration
	// MaxInterval caps the delay. Zero means no cap; equal to Interval
	// means a fixed delay.
	MaxInterval time.Duration
}

// LoadBalancerDelete matches the platform's usual teardown time:
// a check every 2 seconds, 10 times.
func LoadBalancerDelete() Config {
	return Config{
		MaxAttempts: 10,
		Interval:    2 * time.Second,
		MaxInterval: 2 * time.Second,
	}
}

// ServerBuild is the default budget for an instance to become ACTIVE.
func ServerBuild() Config {
	return Config{
		MaxAttempts: 60,
		Interval:    5 * time.Second,
		MaxInterval: 10 * time.Second,
	}
}

// Until runs check after each delay until it reports true, the attempt
// budget is exhausted, or ctx ends.
//
// The returned error is the check's error (with Outcome NotDone) or the
// context's error (with Outcome TimedOut).
func Until(ctx context.Context, config Config, check Check) (Outcome, error) {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if !sleep(ctx, delayFor(config.Interval, config.MaxInterval, attempt)) {
			return TimedOut, ctx.Err()
		}

		done, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return TimedOut, ctx.Err()
			}
			return NotDone, err
		}
		if done {
			return Done, nil
		}
	}

	return NotDone, nil
}

func delayFor(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			return max
		}
		if delay <= 0 {
			return max
		}
	}
	if max > 0 && delay > max {
		delay = max
	}
	return delay
}

func sleep(ctx context.Context, delay time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if delay <= 0 {
		return true
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
