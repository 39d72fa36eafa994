package uploads

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

const mib = 1 << 20

func memFile(name, contentType string, size int) File {
	data := bytes.Repeat([]byte{0xff}, size)
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(size),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "public", "uploads"), 10*mib)
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return s
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestUpload(t *testing.T) {
	s := newStore(t)
	urls, err := s.Upload(t.Context(), []File{
		memFile("Salon Görünümü.JPG", "image/jpeg", 1024),
		memFile("plan", "image/png", 10),
	}, "Sahil Yalısı")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"/uploads/sahil-yalisi/salon-gorunumu-1700000000123.jpg",
		"/uploads/sahil-yalisi/plan-1700000000123.jpg",
	}
	if len(urls) != 2 || urls[0] != want[0] || urls[1] != want[1] {
		t.Errorf("Upload() = %q, want %q", urls, want)
	}
	for _, u := range urls {
		p := filepath.Join(s.Dir(), filepath.FromSlash(strings.TrimPrefix(u, URLPrefix+"/")))
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing file for %s: %v", u, err)
		}
	}
}

func TestUploadSameNameTwice(t *testing.T) {
	s := newStore(t)
	urls, err := s.Upload(t.Context(), []File{
		memFile("a.png", "image/png", 1),
		memFile("a.png", "image/png", 1),
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if urls[0] == urls[1] {
		t.Errorf("duplicate URL %q", urls[0])
	}
	re := regexp.MustCompile(`^/uploads/a-\d+(-\d+)?\.png$`)
	for _, u := range urls {
		if !re.MatchString(u) {
			t.Errorf("URL %q does not match %s", u, re)
		}
	}
}

func TestUploadRejectsBatch(t *testing.T) {
	tests := []struct {
		name  string
		files []File
		want  error
	}{
		{"empty", nil, ErrNoFiles},
		{"too large", []File{memFile("big.jpg", "image/jpeg", 11*mib), memFile("ok.jpg", "image/jpeg", 1*mib)}, ErrTooLarge},
		{"second too large", []File{memFile("ok.jpg", "image/jpeg", 1*mib), memFile("big.jpg", "image/jpeg", 11*mib)}, ErrTooLarge},
		{"not an image", []File{memFile("ok.jpg", "image/jpeg", 10), memFile("notes.pdf", "application/pdf", 10)}, ErrNotImage},
		{"unknown type", []File{memFile("blob", "", 10)}, ErrNotImage},
		{"svg", []File{memFile("logo.svg", "image/svg+xml", 10)}, ErrNotImage},
		{"svg named as png", []File{memFile("logo.svg", "image/png", 10)}, ErrNotImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			_, err := s.Upload(t.Context(), tt.files, "proj")
			if !errors.Is(err, tt.want) {
				t.Fatalf("Upload() = %v, want %v", err, tt.want)
			}
			if n := countFiles(t, s.Dir()); n != 0 {
				t.Errorf("%d files written for a rejected batch", n)
			}
		})
	}
}

func TestUploadExtensionFallback(t *testing.T) {
	s := newStore(t)
	urls, err := s.Upload(t.Context(), []File{memFile("photo.webp", "application/octet-stream", 10)}, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(urls[0], ".webp") {
		t.Errorf("URL = %q", urls[0])
	}
}

func TestUploadRollback(t *testing.T) {
	s := newStore(t)
	boom := errors.New("read failed")
	broken := memFile("b.jpg", "image/jpeg", 10)
	broken.Open = func() (io.ReadCloser, error) { return nil, boom }
	_, err := s.Upload(t.Context(), []File{memFile("a.jpg", "image/jpeg", 10), broken}, "")
	if !errors.Is(err, boom) {
		t.Fatalf("Upload() = %v, want %v", err, boom)
	}
	if n := countFiles(t, s.Dir()); n != 0 {
		t.Errorf("%d files left after rollback", n)
	}
}

func TestUploadUnderstatedSize(t *testing.T) {
	s := newStore(t)
	liar := memFile("liar.jpg", "image/jpeg", 11*mib)
	liar.Size = 1
	_, err := s.Upload(t.Context(), []File{liar}, "")
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Upload() = %v, want ErrTooLarge", err)
	}
	if n := countFiles(t, s.Dir()); n != 0 {
		t.Errorf("%d files left", n)
	}
}

func TestSubfolderTraversal(t *testing.T) {
	s := newStore(t)
	urls, err := s.Upload(t.Context(), []File{memFile("a.jpg", "image/jpeg", 1)}, "../../etc")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(urls[0], "..") {
		t.Errorf("URL escapes uploads: %q", urls[0])
	}
}

func TestFolderName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Sahil Yalısı", "sahil-yalisi"},
		{"../../etc", "etc"},
		{"..", ""},
		{"a.b", "ab"},
	}
	for _, tt := range tests {
		if got := folderName(tt.in); got != tt.want {
			t.Errorf("folderName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
