package ratelimit

import (
	"net/http"
	"strconv"
)

// WriteHeaders sets the X-RateLimit-* headers of result on w, plus
// Retry-After when the request was refused.
func WriteHeaders(w http.ResponseWriter, result Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		h.Set("Retry-After", strconv.Itoa(result.RetryAfterSeconds()))
	}
}

// ResponseWriter adds the headers of a Result to whatever response the wrapped
// handler writes.
type ResponseWriter struct {
	http.ResponseWriter
	result Result
	done   bool
}

// NewResponseWriter wraps w.
func NewResponseWriter(w http.ResponseWriter, result Result) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, result: result}
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.headers()
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	rw.headers()
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the wrapped writer.
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *ResponseWriter) headers() {
	if !rw.done {
		rw.done = true
		WriteHeaders(rw.ResponseWriter, rw.result)
	}
}

// Check charges one request of identifier to tier. When the budget is spent
// it returns false and the caller must reply 429; otherwise it returns w
// wrapped to report the remaining budget. A nil tier is free.
func Check(w http.ResponseWriter, tier *Tier, identifier string) (http.ResponseWriter, Result, bool) {
	if tier == nil {
		return w, Result{Allowed: true}, true
	}
	res := tier.Allow(identifier)
	return NewResponseWriter(w, res), res, res.Allowed
}
