// Package ratelimit throttles API callers and admin logins with per key token
// buckets.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTTL is how long an untouched, refilled bucket is kept.
const idleTTL = 10 * time.Minute

// Result is the state of a bucket after a check.
type Result struct {
	Allowed    bool
	Limit      int           // requests per window
	Remaining  int           // whole tokens left
	ResetAt    time.Time     // when the bucket is full again
	RetryAfter time.Duration // zero when allowed
}

// RetryAfterSeconds is RetryAfter rounded up to whole seconds.
func (r Result) RetryAfterSeconds() int {
	return int(math.Ceil(r.RetryAfter.Seconds()))
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	refill  rate.Limit
	burst   int
	window  time.Duration
	now     func() time.Time
}

type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// NewLimiter returns a limiter refilling requests tokens per window into
// buckets holding at most burst tokens.
func NewLimiter(requests int, window time.Duration, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		refill:  rate.Limit(float64(requests) / window.Seconds()),
		burst:   burst,
		window:  window,
		now:     time.Now,
	}
}

// Allow spends one token of key's bucket if one is available.
func (l *Limiter) Allow(key string) Result {
	now := l.now()
	b := l.get(key, now, true)
	return l.result(b.tokens, now, b.tokens.AllowN(now, 1))
}

// Peek reports whether key has a token left without spending it.
func (l *Limiter) Peek(key string) Result {
	now := l.now()
	b := l.get(key, now, false)
	if b == nil {
		return Result{Allowed: true, Limit: l.limit(), Remaining: l.burst, ResetAt: now}
	}
	return l.result(b.tokens, now, b.tokens.TokensAt(now) >= 1)
}

func (l *Limiter) get(key string, now time.Time, create bool) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.buckets[key]
	if b == nil {
		if !create {
			return nil
		}
		b = &bucket{tokens: rate.NewLimiter(l.refill, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b
}

func (l *Limiter) result(tokens *rate.Limiter, now time.Time, allowed bool) Result {
	left := tokens.TokensAt(now)
	res := Result{
		Allowed:   allowed,
		Limit:     l.limit(),
		Remaining: max(int(left), 0),
		ResetAt:   now.Add(l.timeFor(float64(l.burst) - left)),
	}
	if !allowed {
		res.RetryAfter = max(l.timeFor(1-left), time.Second)
	}
	return res
}

// timeFor is how long the bucket takes to regain n tokens.
func (l *Limiter) timeFor(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n / float64(l.refill) * float64(time.Second))
}

func (l *Limiter) limit() int {
	return int(math.Round(float64(l.refill) * l.window.Seconds()))
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Cleanup drops full buckets idle for longer than idleTTL.
func (l *Limiter) Cleanup() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleTTL && b.tokens.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, key)
		}
	}
}
