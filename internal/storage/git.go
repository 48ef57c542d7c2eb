package storage

import (
	"fmt"
	"os"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/maruel/xbase/internal/models"
)

// gitHistory commits object writes to a repository. Callers serialize access.
type gitHistory struct {
	repo  *gogit.Repository
	name  string
	email string
}

func openGit(dir, name, email string) (*gitHistory, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
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
		cfg.User.Name = name
		cfg.User.Email = email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}
	return &gitHistory{repo: repo, name: name, email: email}, nil
}

// commit stages rel and commits it. Nothing is committed when the content is
// unchanged.
func (g *gitHistory) commit(rel, msg string) error {
	w, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := w.Add(rel); err != nil {
		return fmt.Errorf("failed to stage %s: %w", rel, err)
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	sig := &object.Signature{Name: g.name, Email: g.email, When: time.Now()}
	if _, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// log returns up to limit commits touching rel, newest first.
func (g *gitHistory) log(rel string, limit int) ([]models.Revision, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	iter, err := g.repo.Log(&gogit.LogOptions{FileName: &rel})
	if err != nil {
		// No commits yet.
		return nil, nil
	}
	defer iter.Close()
	var out []models.Revision
	for range limit {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		out = append(out, models.Revision{
			Hash:    c.Hash.String(),
			Message: subject,
			Author:  c.Author.Name,
			Date:    c.Author.When,
		})
	}
	return out, nil
}
