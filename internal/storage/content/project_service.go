// Handles project CRUD on top of a Storage.

package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kennan/folio/internal/storage/entity"
)

// ProjectService manages the project collection.
//
// Every mutation reads the whole collection, changes it and writes it back.
// Mutations are serialized within the process; concurrent writers in other
// processes are last-writer-wins.
type ProjectService struct {
	store   Storage
	history History
	now     func() time.Time

	mu sync.Mutex
}

// NewProjectService creates a project service. history may be nil.
func NewProjectService(store Storage, history History) *ProjectService {
	return &ProjectService{store: store, history: history, now: time.Now}
}

// List returns all projects in stored order.
func (s *ProjectService) List(ctx context.Context) ([]*entity.Project, error) {
	return s.store.Read(ctx)
}

// Get returns the project with the given id.
func (s *ProjectService) Get(ctx context.Context, id string) (*entity.Project, error) {
	projects, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(projects, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return projects[i], nil
}

// Create stores a new project built from draft. The id of draft is ignored:
// a unique slug is derived from the name.
func (s *ProjectService) Create(ctx context.Context, draft *entity.Project) (*entity.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	projects, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	p := draft.Clone()
	p.ApplyDefaults(s.now())
	p.ID = entity.UniqueSlug(entity.Slugify(p.Name), func(id string) bool {
		return indexOf(projects, id) >= 0
	})
	if err := validate(p); err != nil {
		return nil, err
	}
	projects = append(projects, p)
	if err := s.write(ctx, "Create "+p.ID, projects); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Project created", "id", p.ID)
	return p.Clone(), nil
}

// Update merges patch into the project with the given id. An empty patch
// returns the project unchanged without writing.
func (s *ProjectService) Update(ctx context.Context, id string, patch *entity.Patch) (*entity.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	projects, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(projects, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	if patch == nil || patch.IsEmpty() {
		return projects[i], nil
	}
	p := projects[i].Clone()
	patch.Apply(p)
	if err := validateChange(projects[i], p); err != nil {
		return nil, err
	}
	projects[i] = p
	if err := s.write(ctx, "Update "+id, projects); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Project updated", "id", id)
	return p.Clone(), nil
}

// Delete removes the project with the given id.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	projects, err := s.store.Read(ctx)
	if err != nil {
		return err
	}
	i := indexOf(projects, id)
	if i < 0 {
		return ErrNotFound
	}
	projects = slices.Delete(projects, i, i+1)
	if err := s.write(ctx, "Delete "+id, projects); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Project deleted", "id", id)
	return nil
}

// Replace validates and stores projects as the whole collection. Ids must be
// non-empty and unique.
func (s *ProjectService) Replace(ctx context.Context, projects []*entity.Project) error {
	seen := map[string]bool{}
	for _, p := range projects {
		if p.ID == "" || seen[p.ID] {
			return fmt.Errorf("%w: missing or duplicate id %q", ErrValidation, p.ID)
		}
		seen[p.ID] = true
		if err := validate(p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, fmt.Sprintf("Replace %d projects", len(projects)), cloneAll(projects))
}

func (s *ProjectService) write(ctx context.Context, msg string, projects []*entity.Project) error {
	if s.history == nil {
		return s.store.Write(ctx, projects)
	}
	written := false
	err := s.history.Record(ctx, msg, func() error {
		if err := s.store.Write(ctx, projects); err != nil {
			return err
		}
		written = true
		return nil
	})
	if err != nil && written {
		slog.WarnContext(ctx, "Failed to record history", "msg", msg, "err", err)
		return nil
	}
	return err
}

func validate(p *entity.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// validateChange rejects only the problems after has that before did not.
// Stored data read with dangling references stays editable.
func validateChange(before, after *entity.Project) error {
	err := after.Validate()
	var verr *entity.ValidationError
	if !errors.As(err, &verr) {
		return validate(after)
	}
	var old []string
	var prev *entity.ValidationError
	if errors.As(before.Validate(), &prev) {
		old = prev.Problems
	}
	var added []string
	for _, problem := range verr.Problems {
		if !slices.Contains(old, problem) {
			added = append(added, problem)
		}
	}
	if len(added) == 0 {
		if len(old) != 0 {
			slog.Warn("Keeping existing invalid references", "id", after.ID, "problems", old)
		}
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, &entity.ValidationError{Problems: added})
}

func indexOf(projects []*entity.Project, id string) int {
	return slices.IndexFunc(projects, func(p *entity.Project) bool { return p.ID == id })
}
