package middleware

import (
	"net/http"
	"sync"
	"time"
)

// requestBucket guards one caller. Tokens refill continuously; the
// fractional balance keeps sub-1/s rates exact instead of rounding the
// refill away between close requests.
type requestBucket struct {
	mu       sync.Mutex
	capacity float64
	tokens   float64
	perSec   float64
	lastSeen time.Time
}

func newRequestBucket(capacity, perSec int, now time.Time) *requestBucket {
	return &requestBucket{
		capacity: float64(capacity),
		tokens:   float64(capacity),
		perSec:   float64(perSec),
		lastSeen: now,
	}
}

func (b *requestBucket) take(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastSeen).Seconds() * b.perSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimiter keeps one bucket per caller key and periodically sweeps
// buckets idle longer than idleTTL so the map stays bounded.
type RateLimiter struct {
	mu       sync.RWMutex
	buckets  map[string]*requestBucket
	capacity int
	perSec   int
	idleTTL  time.Duration

	now func() time.Time
}

func NewRateLimiter(capacity, perSec int, idleTTL time.Duration) *RateLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	rl := &RateLimiter{
		buckets:  make(map[string]*requestBucket),
		capacity: capacity,
		perSec:   perSec,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
	go rl.sweepLoop()
	return rl
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.bucket(key).take(rl.now())
}

func (rl *RateLimiter) bucket(key string) *requestBucket {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok := rl.buckets[key]; ok {
		return b
	}
	b = newRequestBucket(rl.capacity, rl.perSec, rl.now())
	rl.buckets[key] = b
	return b
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.idleTTL / 2)
	defer ticker.Stop()
	for range ticker.C {
		rl.sweep(rl.now())
	}
}

func (rl *RateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-rl.idleTTL)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		b.mu.Lock()
		idle := b.lastSeen.Before(cutoff)
		b.mu.Unlock()
		if idle {
			delete(rl.buckets, key)
		}
	}
}

// RateLimitMiddleware throttles requests per tenant and client address.
// capacity is the burst allowance, perSec the sustained rate.
func RateLimitMiddleware(capacity, perSec int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(capacity, perSec, 10*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			key := GetTenantFromContext(r.Context()) + ":" + r.RemoteAddr
			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
