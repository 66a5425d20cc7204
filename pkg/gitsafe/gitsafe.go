// Package gitsafe answers ignore and working-tree questions about project
// files when the project root sits inside a git repository. Cleanup uses it
// to refuse deleting content git could not restore.
package gitsafe

import (
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrNotRepository marks roots with no repository. Callers treat it as
// "no git safety available", not as a failure.
var ErrNotRepository = errors.New("gitsafe: not a git repository")

// dirtyMask covers states a deletion would destroy: untracked content,
// staged or unstaged modifications, and conflicts. Committed and ignored
// files stay recoverable.
const dirtyMask = git2go.StatusIndexNew | git2go.StatusIndexModified | git2go.StatusIndexTypeChange |
	git2go.StatusWtNew | git2go.StatusWtModified | git2go.StatusWtTypeChange |
	git2go.StatusConflicted

// Checker wraps a libgit2 repository for ignore and status queries.
type Checker struct {
	repo *git2go.Repository
}

// Open discovers the repository containing root, searching parent
// directories the way git itself does. Returns ErrNotRepository when root
// is not inside a work tree.
func Open(root string) (*Checker, error) {
	repo, err := git2go.OpenRepositoryExtended(root, 0, "")
	if err != nil {
		var gitErr *git2go.GitError
		if errors.As(err, &gitErr) && gitErr.Code == git2go.ErrorCodeNotFound {
			return nil, ErrNotRepository
		}

		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Checker{repo: repo}, nil
}

// Free releases the repository resources.
func (c *Checker) Free() {
	if c.repo != nil {
		c.repo.Free()
		c.repo = nil
	}
}

// Ignored reports whether the worktree-relative path is excluded by ignore
// rules.
func (c *Checker) Ignored(rel string) (bool, error) {
	ignored, err := c.repo.IsPathIgnored(rel)
	if err != nil {
		return false, fmt.Errorf("check ignore rules: %w", err)
	}

	return ignored, nil
}

// Uncommitted reports whether the worktree-relative path carries state git
// cannot restore: untracked content or modifications not yet committed.
func (c *Checker) Uncommitted(rel string) (bool, error) {
	status, err := c.repo.StatusFile(rel)
	if err != nil {
		var gitErr *git2go.GitError
		if errors.As(err, &gitErr) && gitErr.Code == git2go.ErrorCodeNotFound {
			return false, nil
		}

		return false, fmt.Errorf("check file status: %w", err)
	}

	return status&dirtyMask != 0, nil
}
