package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWriteHeaders(t *testing.T) {
	reset := time.Unix(1706012345, 0)
	tests := []struct {
		name   string
		result Result
		want   map[string]string
	}{
		{
			"allowed",
			Result{Allowed: true, Limit: 60, Remaining: 45, ResetAt: reset},
			map[string]string{"X-RateLimit-Limit": "60", "X-RateLimit-Remaining": "45", "X-RateLimit-Reset": "1706012345", "Retry-After": ""},
		},
		{
			"refused",
			Result{Limit: 5, ResetAt: reset, RetryAfter: 30 * time.Second},
			map[string]string{"X-RateLimit-Remaining": "0", "Retry-After": "30"},
		},
		{
			"partial second rounds up",
			Result{Limit: 5, ResetAt: reset, RetryAfter: 1500 * time.Millisecond},
			map[string]string{"Retry-After": "2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteHeaders(w, tt.result)
			for k, v := range tt.want {
				if got := w.Header().Get(k); got != v {
					t.Errorf("%s = %q, want %q", k, got, v)
				}
			}
		})
	}
}

func TestCheck(t *testing.T) {
	w := httptest.NewRecorder()
	got, _, ok := Check(w, nil, "1.2.3.4")
	if !ok || got != http.ResponseWriter(w) {
		t.Error("a nil tier should pass w through")
	}

	tier := &Tier{Name: "write", Limiter: NewLimiter(1, time.Minute, 1), Scope: ScopeSession}
	if _, _, ok := Check(w, tier, "sid"); !ok {
		t.Fatal("first request rejected")
	}
	rw, res, ok := Check(w, tier, "sid")
	if ok || res.Allowed {
		t.Fatal("second request allowed")
	}
	rw.WriteHeader(http.StatusTooManyRequests)
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
}

func TestResponseWriter(t *testing.T) {
	res := Result{Allowed: true, Limit: 100, Remaining: 99, ResetAt: time.Unix(1706012345, 0)}

	t.Run("Write", func(t *testing.T) {
		w := httptest.NewRecorder()
		rw := NewResponseWriter(w, res)
		if _, err := rw.Write([]byte("ok")); err != nil {
			t.Fatal(err)
		}
		if w.Header().Get("X-RateLimit-Limit") != "100" || w.Body.String() != "ok" {
			t.Errorf("headers = %v, body = %q", w.Header(), w.Body.String())
		}
	})

	t.Run("WriteHeader once", func(t *testing.T) {
		w := httptest.NewRecorder()
		rw := NewResponseWriter(w, res)
		rw.WriteHeader(http.StatusCreated)
		// Headers changed after the status line must not be rewritten.
		w.Header().Set("X-RateLimit-Remaining", "changed")
		if _, err := rw.Write([]byte("body")); err != nil {
			t.Fatal(err)
		}
		if w.Code != http.StatusCreated {
			t.Errorf("Code = %d", w.Code)
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != "changed" {
			t.Errorf("headers written twice, Remaining = %q", got)
		}
		if http.NewResponseController(rw) == nil {
			t.Error("no ResponseController")
		}
	})
}
