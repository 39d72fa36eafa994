package handlers

import (
	"context"
	"errors"

	"github.com/kennan/folio/internal/server/dto"
	"github.com/kennan/folio/internal/server/ratelimit"
	"github.com/kennan/folio/internal/server/reqctx"
	"github.com/kennan/folio/internal/storage/identity"
)

// AuthHandler handles admin login, logout and session status.
type AuthHandler struct {
	gate     *identity.Gate
	secure   bool
	failures *ratelimit.Tier
}

// NewAuthHandler creates a new auth handler. Wrong passwords are charged to
// failures, per client IP; it may be nil.
func NewAuthHandler(gate *identity.Gate, secureCookie bool, failures *ratelimit.Tier) *AuthHandler {
	return &AuthHandler{gate: gate, secure: secureCookie, failures: failures}
}

// Auth logs in with a password, or logs out when the action is "logout".
func (h *AuthHandler) Auth(ctx context.Context, req *dto.AuthRequest) (*dto.AuthResponse, error) {
	meta := reqctx.From(ctx)
	if req.Action == dto.AuthActionLogout {
		if err := h.gate.Logout(ctx, meta.Token); err != nil {
			return nil, dto.InternalWithError("failed to log out", err)
		}
		return dto.NewAuthResponse(ClearSessionCookie(h.secure)), nil
	}
	if res := h.failures.Peek(meta.ClientIP); !res.Allowed {
		return nil, dto.RateLimitExceeded(res.RetryAfterSeconds())
	}
	token, expiresAt, err := h.gate.Login(ctx, req.Password, meta.ClientIP, meta.UserAgent)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			h.failures.Allow(meta.ClientIP)
		}
		return nil, APIError(err)
	}
	return dto.NewAuthResponse(NewSessionCookie(token, expiresAt, h.secure)), nil
}

// Status reports whether the caller holds a valid session.
func (h *AuthHandler) Status(ctx context.Context, req *dto.AuthStatusRequest) (*dto.AuthStatusResponse, error) {
	return &dto.AuthStatusResponse{Authenticated: h.gate.IsAuthenticated(reqctx.From(ctx).Token)}, nil
}
