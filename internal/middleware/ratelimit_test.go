package middleware

import (
	"testing"
	"time"
)

// testLimiter builds a limiter on a controllable clock without starting
// the background sweep.
func testLimiter(capacity, perSec int, idleTTL time.Duration) (*RateLimiter, *time.Time) {
	at := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rl := &RateLimiter{
		buckets:  make(map[string]*requestBucket),
		capacity: capacity,
		perSec:   perSec,
		idleTTL:  idleTTL,
	}
	rl.now = func() time.Time { return at }
	return rl, &at
}

func TestRateLimiter_ExhaustsBurstThenRefuses(t *testing.T) {
	rl, _ := testLimiter(3, 1, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("acme:10.0.0.1") {
			t.Fatalf("request %d within burst should pass", i+1)
		}
	}
	if rl.Allow("acme:10.0.0.1") {
		t.Error("request beyond burst should be refused")
	}
	if !rl.Allow("globex:10.0.0.2") {
		t.Error("another caller has its own bucket")
	}
}

func TestRateLimiter_RefillsFractionally(t *testing.T) {
	rl, at := testLimiter(1, 1, time.Minute)

	if !rl.Allow("k") {
		t.Fatal("first request should pass")
	}
	*at = at.Add(500 * time.Millisecond)
	if rl.Allow("k") {
		t.Error("half a token is not enough")
	}
	*at = at.Add(600 * time.Millisecond)
	if !rl.Allow("k") {
		t.Error("the partial refills should have accumulated to a full token")
	}
}

func TestRateLimiter_SweepEvictsIdleBuckets(t *testing.T) {
	rl, at := testLimiter(1, 1, time.Minute)

	rl.Allow("stale")
	*at = at.Add(30 * time.Second)
	rl.Allow("fresh")
	*at = at.Add(45 * time.Second)
	rl.sweep(*at)

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if _, ok := rl.buckets["stale"]; ok {
		t.Error("idle bucket should have been swept")
	}
	if _, ok := rl.buckets["fresh"]; !ok {
		t.Error("recently used bucket should survive the sweep")
	}
}
