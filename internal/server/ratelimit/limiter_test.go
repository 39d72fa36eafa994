package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(requests, burst int) (*Limiter, *time.Time) {
	now := time.Unix(1760000000, 0)
	l := NewLimiter(requests, time.Minute, burst)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_Allow(t *testing.T) {
	l, _ := newTestLimiter(5, 5)
	for i := range 5 {
		res := l.Allow("ip:1")
		if !res.Allowed {
			t.Fatalf("request %d rejected", i+1)
		}
		if res.Limit != 5 {
			t.Errorf("Limit = %d, want 5", res.Limit)
		}
		if res.RetryAfter != 0 {
			t.Errorf("RetryAfter = %v for an allowed request", res.RetryAfter)
		}
	}

	res := l.Allow("ip:1")
	if res.Allowed {
		t.Fatal("6th request allowed")
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}
	// One token every 12s, a full bucket in a minute.
	if res.RetryAfter < 11*time.Second || res.RetryAfter > 13*time.Second {
		t.Errorf("RetryAfter = %v, want about 12s", res.RetryAfter)
	}
	if d := res.ResetAt.Sub(time.Unix(1760000000, 0)); d < 59*time.Second || d > 61*time.Second {
		t.Errorf("ResetAt is %v away, want about a minute", d)
	}
}

func TestLimiter_Refill(t *testing.T) {
	l, now := newTestLimiter(60, 1)
	if !l.Allow("k").Allowed || l.Allow("k").Allowed {
		t.Fatal("burst of 1 not enforced")
	}
	*now = now.Add(500 * time.Millisecond)
	res := l.Allow("k")
	if res.Allowed {
		t.Fatal("allowed before a token was back")
	}
	if res.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want the 1s floor", res.RetryAfter)
	}
	*now = now.Add(time.Second)
	if !l.Allow("k").Allowed {
		t.Error("token not refilled")
	}
}

func TestLimiter_DifferentKeys(t *testing.T) {
	l, _ := newTestLimiter(5, 5)
	for range 5 {
		l.Allow("key1")
	}
	if l.Allow("key1").Allowed {
		t.Error("key1 should be limited")
	}
	for range 5 {
		if !l.Allow("key2").Allowed {
			t.Error("key2 should not be limited")
		}
	}
}

func TestLimiter_Peek(t *testing.T) {
	l, _ := newTestLimiter(3, 3)

	res := l.Peek("ip:1")
	if !res.Allowed || res.Remaining != 3 {
		t.Errorf("Peek on a new key = %+v", res)
	}
	if l.Len() != 0 {
		t.Error("Peek created a bucket")
	}

	for i := range 3 {
		l.Allow("ip:1")
		l.Peek("ip:1")
		if got := l.Peek("ip:1").Remaining; got != 2-i {
			t.Fatalf("Remaining = %d after %d requests, Peek spent a token", got, i+1)
		}
	}
	res = l.Peek("ip:1")
	if res.Allowed {
		t.Error("Peek allowed an empty bucket")
	}
	if res.RetryAfter < time.Second {
		t.Errorf("RetryAfter = %v", res.RetryAfter)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l, now := newTestLimiter(60, 10)

	l.Allow("a")
	l.Allow("b")
	l.Cleanup()
	if l.Len() != 2 {
		t.Fatalf("fresh buckets dropped, Len() = %d", l.Len())
	}

	*now = now.Add(idleTTL + time.Minute)
	l.Allow("b")
	l.Cleanup()
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}
