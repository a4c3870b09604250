// Package ratelimit is a fixed-window request limiter keyed by an arbitrary
// string (the client IP for HTTP). Counters live in a Store: in process memory
// for single-instance deployments, or in Redis when several instances share traffic.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store counts hits in the current window for key.
type Store interface {
	// Increment records one hit and returns the count so far in the window
	// together with the time until the window resets.
	Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error)
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

func New(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, resetIn, err := l.store.Increment(ctx, key, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit store: %w", err)
	}

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	d := Decision{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
	}
	if !d.Allowed {
		d.RetryAfter = resetIn
	}
	return d, nil
}
