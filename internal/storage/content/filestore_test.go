package content

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kennan/folio/internal/storage/entity"
)

func newFileStorage(t *testing.T) *FileStorage {
	t.Helper()
	f, err := NewFileStorage(filepath.Join(t.TempDir(), "data", "projects.json"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFileStorageMissing(t *testing.T) {
	f := newFileStorage(t)
	got, err := f.Read(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Read() = %#v, want empty list", got)
	}
}

func TestFileStorageCorrupt(t *testing.T) {
	f := newFileStorage(t)
	if err := os.WriteFile(f.Path(), []byte(`[{"id":`), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := f.Read(t.Context())
	if !errors.Is(err, ErrStorageIO) {
		t.Errorf("Read() = %v, want ErrStorageIO", err)
	}
}

func TestFileStorageRoundTrip(t *testing.T) {
	ctx := t.Context()
	f := newFileStorage(t)
	in := []*entity.Project{{ID: "loft", Name: "Loft", Category: entity.Interior}}
	in[0].Normalize()
	if err := f.Write(ctx, in); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(f.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "[\n  {\n    \"id\": \"loft\"") {
		t.Errorf("file not indented with two spaces:\n%s", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(f.Path()))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %d entries", len(entries))
	}

	got, err := f.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "Loft" {
		t.Fatalf("Read() = %+v", got)
	}
	got[0].Name = "mutated"
	again, _ := f.Read(ctx)
	if again[0].Name != "Loft" {
		t.Error("Read() returned shared memory")
	}
}

func TestFileStorageLegacyCategory(t *testing.T) {
	f := newFileStorage(t)
	data := `[{"id":"ev","name":"Ev","category":"Konut","year":"2021"}]`
	if err := os.WriteFile(f.Path(), []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := f.Read(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Category != entity.Residential {
		t.Errorf("Category = %q, want %q", got[0].Category, entity.Residential)
	}
	if got[0].Story == nil || got[0].TourScenes == nil {
		t.Error("missing lists not normalized")
	}
}

func TestFileStorageHandEdit(t *testing.T) {
	ctx := t.Context()
	f := newFileStorage(t)
	if err := f.Write(ctx, []*entity.Project{{ID: "a", Category: entity.Urban}}); err != nil {
		t.Fatal(err)
	}
	if got, _ := f.Read(ctx); len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	edited := `[{"id":"a","category":"Urban"},{"id":"b","category":"Urban"}]`
	if err := os.WriteFile(f.Path(), []byte(edited), 0o600); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		// A read can race with the truncation of the file being edited.
		if got, err := f.Read(ctx); err == nil && len(got) == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("hand edit never picked up")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
