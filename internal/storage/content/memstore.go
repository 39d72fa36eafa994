package content

import (
	"context"
	"sync"

	"github.com/kennan/folio/internal/storage/entity"
)

// MemoryStorage is a Storage kept in memory. ReadErr and WriteErr, when set,
// are returned by the next calls.
type MemoryStorage struct {
	mu       sync.Mutex
	projects []*entity.Project
	writes   int

	ReadErr  error
	WriteErr error
}

// NewMemoryStorage returns a storage seeded with projects.
func NewMemoryStorage(projects ...*entity.Project) *MemoryStorage {
	return &MemoryStorage{projects: cloneAll(projects)}
}

// Read implements Storage.
func (m *MemoryStorage) Read(context.Context) ([]*entity.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return cloneAll(m.projects), nil
}

// Write implements Storage.
func (m *MemoryStorage) Write(_ context.Context, projects []*entity.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.projects = cloneAll(projects)
	m.writes++
	return nil
}

// Writes returns how many successful writes happened.
func (m *MemoryStorage) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
