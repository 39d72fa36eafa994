// Package reqctx carries per-request metadata through a context.
package reqctx

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/maruel/ksid"
)

// Meta is what handlers know about a request besides its decoded input.
type Meta struct {
	ClientIP  string
	UserAgent string
	// Token is the raw session token sent by the client, verified or not.
	Token string
	// SessionID is set once the token was verified.
	SessionID ksid.ID
}

type metaKey struct{}

// FromRequest collects the metadata of r. token is the session token found
// in the request, if any.
func FromRequest(r *http.Request, token string) Meta {
	return Meta{
		ClientIP:  ClientIP(r),
		UserAgent: r.UserAgent(),
		Token:     token,
	}
}

// With returns a context carrying m.
func With(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

// From returns the metadata of ctx, zero when none was attached.
func From(ctx context.Context) Meta {
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}

// WithSession records the verified admin session.
func WithSession(ctx context.Context, id ksid.ID) context.Context {
	m := From(ctx)
	m.SessionID = id
	return With(ctx, m)
}

// ClientIP returns the address of the client of r.
//
// Behind a reverse proxy the address is taken from X-Real-IP, else from the
// last hop of X-Forwarded-For: that is the one appended by the proxy itself,
// earlier entries are supplied by the client.
func ClientIP(r *http.Request) string {
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		if last := strings.TrimSpace(hops[len(hops)-1]); last != "" {
			return last
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return strings.Trim(r.RemoteAddr, "[]")
}
