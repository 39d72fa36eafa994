// Password check and signed session tokens for the admin area.

package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maruel/ksid"
	"golang.org/x/crypto/bcrypt"
)

// AdminSubject is the subject of every admin token. There is a single admin.
const AdminSubject = "admin"

// DefaultSessionTTL is the lifetime of a session.
const DefaultSessionTTL = 7 * 24 * time.Hour

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Gate checks the admin password and issues session tokens.
type Gate struct {
	secret       []byte
	passwordHash []byte
	sessions     SessionStore
	ttl          time.Duration
	now          func() time.Time
}

// NewGate creates a gate. An empty passwordHash disables logins.
func NewGate(secret []byte, passwordHash string, sessions SessionStore, ttl time.Duration) (*Gate, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("invalid admin password hash: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Gate{
		secret:       secret,
		passwordHash: []byte(passwordHash),
		sessions:     sessions,
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Enabled reports whether an admin password is configured.
func (g *Gate) Enabled() bool {
	return len(g.passwordHash) != 0
}

// TTL returns the session lifetime.
func (g *Gate) TTL() time.Duration {
	return g.ttl
}

// Login checks password and opens a session. clientIP and userAgent are
// stored with the session for auditing.
func (g *Gate) Login(ctx context.Context, password, clientIP, userAgent string) (string, time.Time, error) {
	if !g.Enabled() || bcrypt.CompareHashAndPassword(g.passwordHash, []byte(password)) != nil {
		slog.WarnContext(ctx, "Failed admin login", "ip", clientIP)
		return "", time.Time{}, ErrUnauthorized
	}
	now := g.now()
	expiresAt := now.Add(g.ttl)
	sid := ksid.NewID()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: sid.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   AdminSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	if len(userAgent) > 200 {
		userAgent = userAgent[:200]
	}
	err = g.sessions.Create(&Session{
		ID:        sid,
		TokenHash: hashToken(signed),
		IPAddress: clientIP,
		UserAgent: userAgent,
		Created:   UnixOf(now),
		ExpiresAt: UnixOf(expiresAt),
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create session: %w", err)
	}
	slog.InfoContext(ctx, "Admin logged in", "sid", sid, "ip", clientIP)
	return signed, expiresAt, nil
}

// Verify returns the session of a valid token, or ErrUnauthorized.
func (g *Gate) Verify(token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithSubject(AdminSubject), jwt.WithExpirationRequired(), jwt.WithTimeFunc(g.now))
	if err != nil {
		return nil, ErrUnauthorized
	}
	sid, err := ksid.Parse(c.SessionID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	s, ok := g.sessions.Get(sid)
	if !ok || !s.Active(g.now()) || s.TokenHash != hashToken(token) {
		return nil, ErrUnauthorized
	}
	return s, nil
}

// IsAuthenticated reports whether token is a valid admin token.
func (g *Gate) IsAuthenticated(token string) bool {
	_, err := g.Verify(token)
	return err == nil
}

// Logout revokes the session of token. Invalid tokens are ignored.
func (g *Gate) Logout(ctx context.Context, token string) error {
	s, err := g.Verify(token)
	if err != nil {
		return nil
	}
	if err := g.sessions.Revoke(s.ID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	slog.InfoContext(ctx, "Admin logged out", "sid", s.ID)
	return nil
}

// CleanupExpired drops expired sessions from the store.
func (g *Gate) CleanupExpired(ctx context.Context) error {
	n, err := g.sessions.CleanupExpired(0)
	if err != nil {
		return err
	}
	if n != 0 {
		slog.InfoContext(ctx, "Removed expired sessions", "count", n)
	}
	return nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
