// Package ratelimit implements the fixed-window admission check that gates
// every upload route.
//
// A window opens on the first request of an identifier and lasts for the
// configured duration. Requests inside the window are counted until the
// limit is reached; further requests are denied without touching the count.
// Once the window has passed, the next request opens a fresh one. Bursts at
// the boundary between two windows are accepted.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/moyoez/scangate/types"
)

// Store keeps the per-identifier windows. Hit must be atomic per identifier.
type Store interface {
	// Hit opens or reuses the window of identifier and counts one request if
	// the window still has room. It returns the entry after the call and
	// whether the request was admitted.
	Hit(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (types.RateLimitEntry, bool, error)
	// Sweep drops windows that have passed and reports how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(store Store, limit int, window time.Duration, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("ratelimit: store is nil")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("ratelimit: limit must be > 0, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("ratelimit: window must be > 0, got %s", window)
	}
	l := &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Check counts one request for identifier and reports whether it is admitted.
func (l *Limiter) Check(ctx context.Context, identifier string) (types.RateLimitDecision, error) {
	entry, allowed, err := l.store.Hit(ctx, identifier, l.limit, l.window, l.now())
	if err != nil {
		return types.RateLimitDecision{}, fmt.Errorf("rate limit check for %s: %w", identifier, err)
	}
	remaining := max(l.limit-entry.Count, 0)
	return types.RateLimitDecision{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   entry.ResetAt,
	}, nil
}

// Sweep implements sweeper.Sweepable.
func (l *Limiter) Sweep(ctx context.Context, now time.Time) (int, error) {
	return l.store.Sweep(ctx, now)
}

func (l *Limiter) Limit() int {
	return l.limit
}
