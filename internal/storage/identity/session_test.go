package identity

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/maruel/ksid"

	"github.com/kennan/folio/internal/jsonldb"
)

func TestSessionService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.jsonl")
	svc, err := NewSessionService(path)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	live := &Session{ID: ksid.NewID(), TokenHash: "h1", ExpiresAt: UnixOf(now.Add(time.Hour))}
	old := &Session{ID: ksid.NewID(), TokenHash: "h2", ExpiresAt: UnixOf(now.Add(-48 * time.Hour))}
	for _, s := range []*Session{live, old} {
		if err := svc.Create(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.Create(&Session{ID: ksid.NewID()}); err == nil {
		t.Error("Create accepted a session without token hash")
	}
	if got := svc.CountActive(); got != 1 {
		t.Errorf("CountActive() = %d, want 1", got)
	}

	if err := svc.Revoke(live.ID); err != nil {
		t.Fatal(err)
	}
	got, ok := svc.Get(live.ID)
	if !ok || got.RevokedAt == 0 || got.Active(now) {
		t.Errorf("revoked session = %+v", got)
	}
	if err := svc.Revoke(ksid.NewID()); !errors.Is(err, jsonldb.ErrNotFound) {
		t.Errorf("Revoke(unknown) = %v, want jsonldb.ErrNotFound", err)
	}

	n, err := svc.CleanupExpired(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", n)
	}

	reopened, err := NewSessionService(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reopened.Get(old.ID); ok {
		t.Error("expired session survived reload")
	}
	if s, ok := reopened.Get(live.ID); !ok || s.RevokedAt == 0 {
		t.Errorf("reloaded session = %+v, %v", s, ok)
	}
}
