package analysis

import (
	"context"
	"testing"
	"time"
)

// fakeClockPacer wires a controllable clock into the pacer; sleeping
// advances the fake clock instead of the wall clock.
func fakeClockPacer(budgetPerMinute int) (*TokenBucketPacer, *time.Duration) {
	p := NewTokenBucketPacer(budgetPerMinute)
	current := time.Unix(1_700_000_000, 0)
	slept := new(time.Duration)
	p.lastRefill = current
	p.now = func() time.Time { return current }
	p.sleep = func(ctx context.Context, d time.Duration) error {
		*slept += d
		current = current.Add(d)
		return nil
	}
	return p, slept
}

func TestTokenBucketPacer_NoWaitWithinBudget(t *testing.T) {
	p, slept := fakeClockPacer(30_000)

	waited, err := p.Wait(context.Background(), 10_000)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if waited != 0 || *slept != 0 {
		t.Errorf("expected no wait from a full bucket, waited=%s slept=%s", waited, *slept)
	}
}

func TestTokenBucketPacer_WaitsForRefill(t *testing.T) {
	p, slept := fakeClockPacer(30_000)

	if _, err := p.Wait(context.Background(), 30_000); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	// The bucket is empty; 15k tokens refill at 500/s, so 30s.
	waited, err := p.Wait(context.Background(), 15_000)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if waited != 30*time.Second {
		t.Errorf("expected 30s wait, got %s", waited)
	}
	if *slept != 30*time.Second {
		t.Errorf("expected 30s slept, got %s", *slept)
	}
}

func TestTokenBucketPacer_ClampsOversizedCalls(t *testing.T) {
	p, _ := fakeClockPacer(30_000)

	// A call bigger than the whole budget reserves the bucket, no more.
	waited, err := p.Wait(context.Background(), 100_000)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if waited != 0 {
		t.Errorf("full bucket should satisfy a clamped call, waited=%s", waited)
	}
}

func TestTokenBucketPacer_CancelledContext(t *testing.T) {
	p := NewTokenBucketPacer(30_000)
	p.tokens = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Wait(ctx, 10_000); err == nil {
		t.Error("expected error from cancelled context")
	}
}
