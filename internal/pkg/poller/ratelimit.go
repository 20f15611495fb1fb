package poller

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum spacing between outbound provider calls,
// shared across every polling loop in the process. Only the slot reservation
// is serialized; the wait itself happens outside the lock so concurrent
// tasks queue up without blocking each other's bookkeeping.
type RateLimiter struct {
	mu   sync.Mutex
	gap  time.Duration
	next time.Time
}

func NewRateLimiter(gap time.Duration) *RateLimiter {
	return &RateLimiter{gap: gap}
}

// Wait blocks until the caller's reserved slot arrives or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.gap <= 0 {
		return ctx.Err()
	}

	r.mu.Lock()
	now := time.Now()
	slot := r.next
	if slot.Before(now) {
		slot = now
	}
	r.next = slot.Add(r.gap)
	r.mu.Unlock()

	d := time.Until(slot)
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
