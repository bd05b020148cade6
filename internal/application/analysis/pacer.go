package analysis

import (
	"context"
	"sync"
	"time"
)

// Pacer paces sequential LLM calls against the provider's shared
// per-minute token budget. Wait blocks cooperatively until the estimated
// token cost fits the remaining budget, returning how long it slept.
type Pacer interface {
	Wait(ctx context.Context, tokens int) (time.Duration, error)
}

// TokenBucketPacer implements Pacer as a token bucket refilled at the
// per-minute budget rate. Unlike a fixed wall-clock sleep, the wait length
// follows actual consumption, and cancellation is honored.
type TokenBucketPacer struct {
	mu           sync.Mutex
	capacity     float64
	tokens       float64
	refillPerSec float64
	lastRefill   time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTokenBucketPacer sizes the bucket to the provider's published
// per-minute token budget.
func NewTokenBucketPacer(budgetPerMinute int) *TokenBucketPacer {
	return &TokenBucketPacer{
		capacity:     float64(budgetPerMinute),
		tokens:       float64(budgetPerMinute),
		refillPerSec: float64(budgetPerMinute) / 60.0,
		lastRefill:   time.Now(),
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// Wait reserves tokens, sleeping until enough budget has refilled. Calls
// larger than the bucket capacity reserve the whole bucket.
func (p *TokenBucketPacer) Wait(ctx context.Context, tokens int) (time.Duration, error) {
	need := float64(tokens)
	if need > p.capacity {
		need = p.capacity
	}

	p.mu.Lock()
	p.refill()
	var wait time.Duration
	if p.tokens < need {
		deficit := need - p.tokens
		wait = time.Duration(deficit / p.refillPerSec * float64(time.Second))
	}
	p.mu.Unlock()

	if wait > 0 {
		if err := p.sleep(ctx, wait); err != nil {
			return 0, err
		}
	}

	p.mu.Lock()
	p.refill()
	p.tokens -= need
	if p.tokens < 0 {
		p.tokens = 0
	}
	p.mu.Unlock()
	return wait, nil
}

func (p *TokenBucketPacer) refill() {
	now := p.now()
	elapsed := now.Sub(p.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	p.tokens += elapsed * p.refillPerSec
	if p.tokens > p.capacity {
		p.tokens = p.capacity
	}
	p.lastRefill = now
}

// sleepContext pauses without blocking unrelated work and returns early
// when ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
