package content

import (
	"context"

	"github.com/kennan/folio/internal/storage/entity"
)

// Storage persists the whole project collection at once.
//
// Read returns ErrStorageIO (wrapped) on failure. A storage that was never
// written returns an empty list.
type Storage interface {
	Read(ctx context.Context) ([]*entity.Project, error)
	Write(ctx context.Context, projects []*entity.Project) error
}

// History records successful writes, typically as git commits.
type History interface {
	// Record calls write and, when it succeeds, records the change with msg.
	Record(ctx context.Context, msg string, write func() error) error
}
