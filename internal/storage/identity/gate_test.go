package identity

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = bytes.Repeat([]byte("k"), 32)

func newTestGate(t *testing.T, password string) (*Gate, *SessionService) {
	t.Helper()
	sessions, err := NewSessionService(filepath.Join(t.TempDir(), "db", "sessions.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	hash := ""
	if password != "" {
		// MinCost keeps the test fast.
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			t.Fatal(err)
		}
		hash = string(h)
	}
	g, err := NewGate(testSecret, hash, sessions, 0)
	if err != nil {
		t.Fatal(err)
	}
	return g, sessions
}

func TestGateLogin(t *testing.T) {
	ctx := t.Context()
	g, sessions := newTestGate(t, "s3cret")

	if _, _, err := g.Login(ctx, "wrong", "127.0.0.1", "test"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Login(wrong) = %v, want ErrUnauthorized", err)
	}

	before := time.Now()
	token, expiresAt, err := g.Login(ctx, "s3cret", "127.0.0.1", "test")
	if err != nil {
		t.Fatal(err)
	}
	if d := expiresAt.Sub(before); d < DefaultSessionTTL-time.Minute || d > DefaultSessionTTL+time.Minute {
		t.Errorf("expiresAt - now = %v, want ~7 days", d)
	}
	if !g.IsAuthenticated(token) {
		t.Fatal("IsAuthenticated(token) = false")
	}
	if sessions.CountActive() != 1 {
		t.Errorf("CountActive() = %d, want 1", sessions.CountActive())
	}

	t.Run("claims", func(t *testing.T) {
		var c claims
		if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
			t.Fatal(err)
		}
		if c.Subject != AdminSubject || c.SessionID == "" || c.IssuedAt == nil || c.ExpiresAt == nil {
			t.Errorf("claims = %+v", c)
		}
	})

	t.Run("logout revokes", func(t *testing.T) {
		if err := g.Logout(ctx, token); err != nil {
			t.Fatal(err)
		}
		if g.IsAuthenticated(token) {
			t.Error("token still valid after Logout")
		}
		if err := g.Logout(ctx, token); err != nil {
			t.Errorf("second Logout() = %v", err)
		}
	})
}

func TestGateVerifyRejects(t *testing.T) {
	ctx := t.Context()
	g, _ := newTestGate(t, "pw")
	valid, _, err := g.Login(ctx, "pw", "", "")
	if err != nil {
		t.Fatal(err)
	}

	other, _ := newTestGate(t, "pw")
	foreign, _, err := other.Login(ctx, "pw", "", "")
	if err != nil {
		t.Fatal(err)
	}

	// A token minted with the right secret for a session the store never saw.
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: "abc",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   AdminSubject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	forgedToken, err := forged.SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"tampered", valid[:len(valid)-2] + "xx"},
		{"unknown session", foreign},
		{"forged sid", forgedToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.Verify(tt.token); !errors.Is(err, ErrUnauthorized) {
				t.Errorf("Verify() = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestGateExpired(t *testing.T) {
	ctx := t.Context()
	g, sessions := newTestGate(t, "pw")
	g.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	token, _, err := g.Login(ctx, "pw", "", "")
	if err != nil {
		t.Fatal(err)
	}
	g.now = time.Now
	if _, err := g.Verify(token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Verify(expired) = %v, want ErrUnauthorized", err)
	}
	if err := g.CleanupExpired(ctx); err != nil {
		t.Fatal(err)
	}
	if n := sessions.table.Len(); n != 0 {
		t.Errorf("sessions left after cleanup = %d", n)
	}
}

func TestGateDisabled(t *testing.T) {
	g, _ := newTestGate(t, "")
	if g.Enabled() {
		t.Error("Enabled() = true without a hash")
	}
	if _, _, err := g.Login(t.Context(), "", "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Login() = %v, want ErrUnauthorized", err)
	}
}

func TestNewGate(t *testing.T) {
	if _, err := NewGate([]byte("short"), "", nil, 0); err == nil {
		t.Error("NewGate accepted a short secret")
	}
	if _, err := NewGate(testSecret, "plaintext", nil, 0); err == nil {
		t.Error("NewGate accepted a non-bcrypt hash")
	}
	h, err := HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewGate(testSecret, h, nil, time.Hour); err != nil {
		t.Errorf("NewGate(valid) = %v", err)
	}
}
