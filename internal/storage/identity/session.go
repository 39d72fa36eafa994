// Handles admin sessions backing the session cookie.

package identity

import (
	"time"

	"github.com/maruel/ksid"

	"github.com/kennan/folio/internal/jsonldb"
)

// Session is one admin login.
type Session struct {
	ID        ksid.ID `json:"id" jsonschema:"description=Unique session identifier"`
	TokenHash string  `json:"token_hash" jsonschema:"description=SHA-256 hash of the signed token"`
	IPAddress string  `json:"ip_address,omitempty" jsonschema:"description=Client IP address at login"`
	UserAgent string  `json:"user_agent,omitempty" jsonschema:"description=User-Agent at login"`
	Created   Unix    `json:"created"`
	ExpiresAt Unix    `json:"expires_at"`
	RevokedAt Unix    `json:"revoked_at,omitempty"`
}

// Clone returns a copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	return &c
}

// GetID returns the session's ID.
func (s *Session) GetID() ksid.ID {
	return s.ID
}

// Validate checks that the session is valid.
func (s *Session) Validate() error {
	if s.ID.IsZero() {
		return errSessionIDRequired
	}
	if s.TokenHash == "" {
		return errSessionTokenHashRequired
	}
	if s.ExpiresAt.IsZero() {
		return errSessionExpiryRequired
	}
	return nil
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt.IsZero() && !s.ExpiresAt.Before(now)
}

// SessionStore persists sessions.
type SessionStore interface {
	Create(s *Session) error
	Get(id ksid.ID) (*Session, bool)
	Revoke(id ksid.ID) error
	CleanupExpired(olderThan time.Duration) (int, error)
}

// SessionService is a SessionStore backed by a JSONL table.
type SessionService struct {
	table *jsonldb.Table[*Session]
}

// NewSessionService opens the session table at tablePath.
func NewSessionService(tablePath string) (*SessionService, error) {
	table, err := jsonldb.NewTable[*Session](tablePath)
	if err != nil {
		return nil, err
	}
	return &SessionService{table: table}, nil
}

// Create stores a new session. Created is set when zero.
func (s *SessionService) Create(session *Session) error {
	if session.Created.IsZero() {
		session.Created = UnixOf(time.Now())
	}
	return s.table.Append(session)
}

// Get retrieves a session by ID.
func (s *SessionService) Get(id ksid.ID) (*Session, bool) {
	return s.table.Get(id)
}

// Revoke marks a session as revoked. Revoking twice is a no-op.
func (s *SessionService) Revoke(id ksid.ID) error {
	_, err := s.table.Modify(id, func(session *Session) error {
		if session.RevokedAt.IsZero() {
			session.RevokedAt = UnixOf(time.Now())
		}
		return nil
	})
	return err
}

// CountActive returns the number of active sessions.
func (s *SessionService) CountActive() int {
	now := time.Now()
	n := 0
	for session := range s.table.All() {
		if session.Active(now) {
			n++
		}
	}
	return n
}

// CleanupExpired removes sessions that have been expired for more than
// olderThan, and revoked sessions past their expiry.
func (s *SessionService) CleanupExpired(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	return s.table.DeleteFunc(func(session *Session) bool {
		return session.ExpiresAt.Before(cutoff)
	})
}
