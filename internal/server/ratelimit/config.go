package ratelimit

import (
	"context"
	"net/http"
	"time"

	"github.com/kennan/folio/internal/storage"
)

// Scope selects what identifies a caller.
type Scope int

const (
	// ScopeIP keys buckets by client address.
	ScopeIP Scope = iota
	// ScopeSession keys buckets by admin session ID.
	ScopeSession
)

func (s Scope) String() string {
	switch s {
	case ScopeIP:
		return "ip"
	case ScopeSession:
		return "session"
	default:
		return "unknown"
	}
}

// Tier is a named budget shared by a class of requests.
//
// Methods on a nil Tier always allow.
type Tier struct {
	Name    string
	Limiter *Limiter
	Scope   Scope
}

// Key returns the bucket key of identifier within the tier.
func (t *Tier) Key(identifier string) string {
	return t.Scope.String() + ":" + identifier + ":" + t.Name
}

// Allow spends one request of identifier's budget.
func (t *Tier) Allow(identifier string) Result {
	if t == nil {
		return Result{Allowed: true}
	}
	return t.Limiter.Allow(t.Key(identifier))
}

// Peek reports whether identifier has budget left without spending it.
func (t *Tier) Peek(identifier string) Result {
	if t == nil {
		return Result{Allowed: true}
	}
	return t.Limiter.Peek(t.Key(identifier))
}

// Limiters holds the tiers of the server. A nil tier is unlimited.
type Limiters struct {
	Login *Tier // failed admin logins, per IP
	Write *Tier // mutations, per session
	Read  *Tier // public reads, per IP
}

// New creates Limiters from per-minute rates. A zero rate disables the tier.
func New(cfg storage.RateLimits) *Limiters {
	return &Limiters{
		// A whole minute of failures may come at once; reads and writes burst
		// a sixth of theirs.
		Login: newTier("login", cfg.AuthRatePerMin, cfg.AuthRatePerMin, ScopeIP),
		Write: newTier("write", cfg.WriteRatePerMin, cfg.WriteRatePerMin/6, ScopeSession),
		Read:  newTier("read", cfg.ReadRatePerMin, cfg.ReadRatePerMin/6, ScopeIP),
	}
}

func newTier(name string, perMin, burst int, scope Scope) *Tier {
	if perMin <= 0 {
		return nil
	}
	return &Tier{Name: name, Limiter: NewLimiter(perMin, time.Minute, max(burst, 1)), Scope: scope}
}

// LoginTier returns the failed login budget, nil when l is nil.
func (l *Limiters) LoginTier() *Tier {
	if l == nil {
		return nil
	}
	return l.Login
}

// MatchUnauth returns the tier charged for a request without a session, nil
// when it is free. Logins are charged by the login handlers, and only when
// they fail.
func (l *Limiters) MatchUnauth(method, path string) *Tier {
	if l == nil || path == "/api/health" || method != http.MethodGet {
		return nil
	}
	return l.Read
}

// MatchAuth returns the tier charged for a request with a session, nil when it
// is free.
func (l *Limiters) MatchAuth(method, path string) *Tier {
	if l == nil || path == "/api/health" {
		return nil
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return l.Write
	}
	return nil
}

// Run drops stale buckets every interval until ctx is done.
func (l *Limiters) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, t := range []*Tier{l.Login, l.Write, l.Read} {
				if t != nil {
					t.Limiter.Cleanup()
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
