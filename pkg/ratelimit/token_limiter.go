package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenLimiter enforces a per-minute token budget. Unlike a request limiter,
// callers declare how many tokens an operation will consume before it runs.
type TokenLimiter struct {
	mu          sync.Mutex
	limit       int
	remaining   int
	windowStart time.Time
}

// NewTokenLimiter creates a limiter with the given tokens-per-minute budget.
func NewTokenLimiter(limit int) *TokenLimiter {
	return &TokenLimiter{
		limit:       limit,
		remaining:   limit,
		windowStart: time.Now(),
	}
}

// Wait blocks until the given number of tokens fits in the current window,
// or the context is cancelled. Requests larger than the whole budget are
// allowed through once the window is fresh.
func (t *TokenLimiter) Wait(ctx context.Context, tokens int) error {
	for {
		t.mu.Lock()
		t.refill()
		if tokens <= t.remaining || tokens > t.limit && t.remaining == t.limit {
			t.remaining -= tokens
			if t.remaining < 0 {
				t.remaining = 0
			}
			t.mu.Unlock()
			return nil
		}
		wait := time.Until(t.windowStart.Add(time.Minute))
		t.mu.Unlock()

		if wait <= 0 {
			wait = 10 * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// GetRemaining returns the tokens left in the current window.
func (t *TokenLimiter) GetRemaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refill()
	return t.remaining
}

func (t *TokenLimiter) refill() {
	if time.Since(t.windowStart) >= time.Minute {
		t.windowStart = time.Now()
		t.remaining = t.limit
	}
}
