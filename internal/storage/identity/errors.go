package identity

import "errors"

var (
	// ErrUnauthorized is returned for a wrong password and for any token that
	// is malformed, expired, revoked or unknown.
	ErrUnauthorized = errors.New("unauthorized")

	errSessionIDRequired        = errors.New("session id is required")
	errSessionTokenHashRequired = errors.New("session token_hash is required")
	errSessionExpiryRequired    = errors.New("session expires_at is required")
)
