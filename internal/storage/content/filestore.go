// Stores the project collection as one pretty-printed JSON array.

package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/kennan/folio/internal/storage/entity"
)

// FileStorage is a Storage backed by a JSON file.
//
// Reads are cached in memory. The directory holding the file is watched so
// that hand edits invalidate the cache.
type FileStorage struct {
	path    string
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	cache  []*entity.Project
	cached bool
}

// NewFileStorage returns a storage for path, creating its directory.
func NewFileStorage(path string) (*FileStorage, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("%w: failed to create directory: %w", ErrStorageIO, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	f := &FileStorage{path: path, watcher: w}
	go f.watch()
	return f, nil
}

// Path returns the file path.
func (f *FileStorage) Path() string {
	return f.path
}

// Close stops watching the file.
func (f *FileStorage) Close() error {
	return f.watcher.Close()
}

func (f *FileStorage) watch() {
	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			f.mu.Lock()
			f.cached = false
			f.cache = nil
			f.mu.Unlock()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Error watching projects file", "path", f.path, "err", err)
		}
	}
}

// Read implements Storage.
func (f *FileStorage) Read(ctx context.Context) ([]*entity.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.cached {
		projects, err := f.load(ctx)
		if err != nil {
			return nil, err
		}
		f.cache = projects
		f.cached = true
	}
	return cloneAll(f.cache), nil
}

func (f *FileStorage) load(ctx context.Context) ([]*entity.Project, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		slog.DebugContext(ctx, "Projects file missing, starting empty", "path", f.path)
		return []*entity.Project{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	projects, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStorageIO, f.path, err)
	}
	for _, p := range projects {
		if err := p.Validate(); err != nil {
			slog.WarnContext(ctx, "Stored project is inconsistent", "id", p.ID, "err", err)
		}
	}
	return projects, nil
}

// Write implements Storage. The file is replaced atomically.
func (f *FileStorage) Write(_ context.Context, projects []*entity.Project) error {
	data, err := Encode(projects)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	name := tmp.Name()
	defer func() {
		_ = os.Remove(name)
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	if err := os.Chmod(name, 0o644); err != nil { //nolint:gosec // G302: the data file is public content
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	if err := os.Rename(name, f.path); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
	f.cache = cloneAll(projects)
	f.cached = true
	return nil
}

// Decode parses a JSON array of projects.
func Decode(data []byte) ([]*entity.Project, error) {
	var projects []*entity.Project
	if len(bytes.TrimSpace(data)) == 0 {
		return []*entity.Project{}, nil
	}
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to parse projects: %w", err)
	}
	if projects == nil {
		projects = []*entity.Project{}
	}
	for i, p := range projects {
		if p == nil {
			return nil, fmt.Errorf("project %d is null", i)
		}
		p.Normalize()
	}
	return projects, nil
}

// Encode formats projects as an indented JSON array.
func Encode(projects []*entity.Project) ([]byte, error) {
	if projects == nil {
		projects = []*entity.Project{}
	}
	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal projects: %w", err)
	}
	return append(data, '\n'), nil
}

func cloneAll(projects []*entity.Project) []*entity.Project {
	out := make([]*entity.Project, len(projects))
	for i, p := range projects {
		out[i] = p.Clone()
	}
	return out
}
