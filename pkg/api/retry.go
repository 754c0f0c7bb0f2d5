package api

import (
	"context"
	"time"
)

// RetryPolicy controls how a node callable is retried when it returns an
// error. MaxAttempts includes the first attempt:
//
//	MaxAttempts = 1 => no retries (just the initial call)
//	MaxAttempts = 3 => initial call + up to 2 retries
//
// InitialBackoff is the delay before the second attempt; each further delay
// is multiplied by BackoffMultiplier (default 2.0) and capped at MaxBackoff
// when set. A zero InitialBackoff retries immediately.
//
// Retries happen inside one node execution: observers see a single
// node_start/node_end pair regardless of attempts.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// NextBackoff returns the delay to apply after the given delay, following
// the policy's multiplier and cap.
func (p RetryPolicy) NextBackoff(current time.Duration) time.Duration {
	multiplier := p.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	next := time.Duration(float64(current) * multiplier)
	if p.MaxBackoff > 0 && next > p.MaxBackoff {
		return p.MaxBackoff
	}
	return next
}

// SleepBackoff waits for d or until ctx is done, returning ctx.Err in the
// latter case.
func SleepBackoff(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
