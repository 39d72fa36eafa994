package content

import (
	"context"

	"github.com/kennan/folio/internal/storage/git"
)

// GitHistory records writes as commits of Files in Repo.
type GitHistory struct {
	Repo   *git.Repo
	Author git.Author
	// Files are relative to the repository root.
	Files []string
}

// Record implements History.
func (h *GitHistory) Record(ctx context.Context, msg string, write func() error) error {
	return h.Repo.CommitTx(ctx, h.Author, func() (string, []string, error) {
		if err := write(); err != nil {
			return "", nil, err
		}
		return msg, h.Files, nil
	})
}
