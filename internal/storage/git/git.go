// Package git records the history of the data directory with go-git, so
// every admin mutation can be inspected or reverted with plain git tooling.
package git

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Author identifies who made a change for git commits.
type Author struct {
	Name  string
	Email string
}

// Commit represents a commit in git history.
type Commit struct {
	Hash       string    `json:"hash"`
	Message    string    `json:"message"` // Subject line.
	Body       string    `json:"body,omitempty"`
	Author     string    `json:"author"`
	AuthorDate time.Time `json:"author_date"`
}

// Repo is a git repository rooted at the data directory.
type Repo struct {
	dir          string
	defaultName  string
	defaultEmail string
	repo         *gogit.Repository
	mu           sync.Mutex
}

// Open opens the repository in dir, initializing it when needed.
func Open(_ context.Context, dir, defaultName, defaultEmail string) (*Repo, error) {
	if defaultName == "" {
		defaultName = "folio"
	}
	if defaultEmail == "" {
		defaultEmail = "folio@localhost"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create repo directory: %w", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = defaultName
		cfg.User.Email = defaultEmail
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}
	return &Repo{dir: dir, defaultName: defaultName, defaultEmail: defaultEmail, repo: repo}, nil
}

// Dir returns the repository root.
func (r *Repo) Dir() string {
	return r.dir
}

// CommitTx executes fn while holding a lock and commits the returned files.
// Paths are relative to the repository root. If fn returns an error or no
// file changed, no commit is made.
func (r *Repo) CommitTx(_ context.Context, author Author, fn func() (msg string, files []string, err error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, files, err := fn()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	for _, f := range files {
		if _, err := w.Add(f); err != nil {
			return fmt.Errorf("failed to stage %s: %w", f, err)
		}
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	staged := false
	for _, f := range files {
		if st := status.File(f).Staging; st != gogit.Unmodified && st != gogit.Untracked {
			staged = true
		}
	}
	if !staged {
		return nil
	}

	name, email := author.Name, author.Email
	if name == "" {
		name = r.defaultName
	}
	if email == "" {
		email = r.defaultEmail
	}
	now := time.Now()
	_, err = w.Commit(msg, &gogit.CommitOptions{
		Author:    &object.Signature{Name: name, Email: email, When: now},
		Committer: &object.Signature{Name: r.defaultName, Email: r.defaultEmail, When: now},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// History returns up to n commits touching path, newest first. n is capped
// at 1000; n <= 0 means 1000.
func (r *Repo) History(_ context.Context, path string, n int) ([]*Commit, error) {
	if n <= 0 || n > 1000 {
		n = 1000
	}
	opts := &gogit.LogOptions{}
	if path != "" && path != "." {
		opts.FileName = &path
	}
	iter, err := r.repo.Log(opts)
	if err != nil {
		// No commit yet.
		return nil, nil
	}
	defer iter.Close()

	var commits []*Commit
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, body, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, &Commit{
			Hash:       c.Hash.String(),
			Message:    subject,
			Body:       strings.TrimSpace(body),
			Author:     c.Author.Name,
			AuthorDate: c.Author.When,
		})
	}
	return commits, nil
}
