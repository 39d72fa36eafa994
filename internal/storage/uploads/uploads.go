// Package uploads stores admin image uploads under the public uploads
// directory.
//
// A batch is all-or-nothing: every file is checked before the first byte is
// written, and files already written are removed when a later one fails.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kennan/folio/internal/storage/entity"
)

// URLPrefix is the public URL path uploads are served under.
const URLPrefix = "/uploads"

var dashRuns = regexp.MustCompile(`-+`)

var (
	// ErrNoFiles is returned for an empty batch.
	ErrNoFiles = errors.New("no file uploaded")
	// ErrTooLarge is returned when a file exceeds the size limit.
	ErrTooLarge = errors.New("file too large")
	// ErrNotImage is returned when a file is not an image.
	ErrNotImage = errors.New("file is not an image")
)

// File is one uploaded file.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FromMultipart converts multipart headers into Files.
func FromMultipart(headers []*multipart.FileHeader) []File {
	files := make([]File, 0, len(headers))
	for _, h := range headers {
		files = append(files, File{
			Name:        h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Open: func() (io.ReadCloser, error) {
				return h.Open()
			},
		})
	}
	return files
}

// Store writes uploads below a root directory.
type Store struct {
	root    string
	maxSize int64
	now     func() time.Time
}

// New returns a store rooted at dir accepting files up to maxSize bytes.
func New(dir string, maxSize int64) (*Store, error) {
	if maxSize <= 0 {
		return nil, errors.New("max upload size must be positive")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: uploads are public
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &Store{root: dir, maxSize: maxSize, now: time.Now}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.root
}

// MaxSize returns the per-file size limit.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Upload stores files in the optional subfolder and returns their public
// URLs in order.
func (s *Store) Upload(ctx context.Context, files []File, subfolder string) ([]string, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	for _, f := range files {
		if err := s.check(f); err != nil {
			return nil, err
		}
	}

	sub := folderName(subfolder)
	dir := s.root
	urlDir := URLPrefix
	if sub != "" {
		dir = filepath.Join(s.root, sub)
		urlDir = path.Join(URLPrefix, sub)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: uploads are public
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	var written []string
	urls := make([]string, 0, len(files))
	for _, f := range files {
		name, err := s.write(dir, f)
		if err != nil {
			for _, p := range written {
				if rerr := os.Remove(p); rerr != nil {
					slog.WarnContext(ctx, "Failed to roll back upload", "path", p, "err", rerr)
				}
			}
			return nil, err
		}
		written = append(written, filepath.Join(dir, name))
		urls = append(urls, urlDir+"/"+name)
	}
	slog.InfoContext(ctx, "Uploaded files", "count", len(urls), "dir", urlDir)
	return urls, nil
}

// folderName sanitizes a subfolder name. Dots are dropped so it can never
// climb out of the uploads directory.
func folderName(s string) string {
	s = strings.ReplaceAll(entity.SanitizeFilename(s), ".", "")
	return strings.Trim(dashRuns.ReplaceAllString(s, "-"), "-")
}

func (s *Store) check(f File) error {
	if f.Size > s.maxSize {
		return fmt.Errorf("%w: %s (max %d MiB)", ErrTooLarge, f.Name, s.maxSize>>20)
	}
	ext := strings.ToLower(filepath.Ext(f.Name))
	ct := f.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = mime.TypeByExtension(ext)
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return fmt.Errorf("%w: %s", ErrNotImage, f.Name)
	}
	// SVG can carry script and is served from the site origin.
	if mt == "image/svg+xml" || ext == ".svg" || ext == ".svgz" {
		return fmt.Errorf("%w: %s (svg is not accepted)", ErrNotImage, f.Name)
	}
	return nil
}

// fileName returns <sanitized-base>-<unix-ms><ext>.
func (s *Store) fileName(original string, n int) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	ext := filepath.Ext(base)
	base = entity.SanitizeFilename(strings.TrimSuffix(base, ext))
	ext = entity.SanitizeFilename(ext)
	if ext == "" {
		ext = ".jpg"
	} else {
		ext = "." + ext
	}
	if base == "" {
		base = "image"
	}
	name := base + "-" + strconv.FormatInt(s.now().UnixMilli(), 10)
	if n > 0 {
		name += "-" + strconv.Itoa(n)
	}
	return name + ext
}

// write copies f into dir under a fresh name and returns that name.
func (s *Store) write(dir string, f File) (string, error) {
	var out *os.File
	var name string
	for n := 0; ; n++ {
		name = s.fileName(f.Name, n)
		var err error
		out, err = os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // G302: uploads are public
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) || n >= 100 {
			return "", fmt.Errorf("failed to create %s: %w", name, err)
		}
	}
	full := filepath.Join(dir, name)
	fail := func(err error) (string, error) {
		_ = out.Close()
		_ = os.Remove(full)
		return "", err
	}

	in, err := f.Open()
	if err != nil {
		return fail(fmt.Errorf("failed to open %s: %w", f.Name, err))
	}
	defer func() {
		_ = in.Close()
	}()
	n, err := io.Copy(out, io.LimitReader(in, s.maxSize+1))
	if err != nil {
		return fail(fmt.Errorf("failed to write %s: %w", name, err))
	}
	if n > s.maxSize {
		return fail(fmt.Errorf("%w: %s (max %d MiB)", ErrTooLarge, f.Name, s.maxSize>>20))
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return name, nil
}
