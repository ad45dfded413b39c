package gitlib

import (
	"io"
	"strings"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/pmdminer/pkg/safeconv"
)

// Commit wraps a libgit2 commit.
type Commit struct {
	commit *git2go.Commit
	repo   *Repository
}

// Hash returns the commit hash.
func (c *Commit) Hash() Hash {
	return HashFromOid(c.commit.Id())
}

// Message returns the commit message, used only for diagnostics: logging
// which commit a worker is on or why one was skipped.
func (c *Commit) Message() string {
	return strings.TrimRight(c.commit.Message(), "\n")
}

// NumParents returns the number of parent commits. A count above one
// marks a merge commit, surfaced in worker logs since merge commits often
// explain an unusually large Java file set for a single commit.
func (c *Commit) NumParents() int {
	return safeconv.MustUintToInt(c.commit.ParentCount())
}

// Free releases the commit resources.
func (c *Commit) Free() {
	if c.commit != nil {
		c.commit.Free()
		c.commit = nil
	}
}

// CommitIter iterates over commits, newest first (see Repository.Log).
type CommitIter struct {
	walk *git2go.RevWalk
	repo *Repository
}

// Next returns the next commit in the iteration, or io.EOF when exhausted.
func (ci *CommitIter) Next() (*Commit, error) {
	oid := new(git2go.Oid)

	err := ci.walk.Next(oid)
	if err != nil {
		ci.walk.Free()

		return nil, io.EOF
	}

	commit, lookupErr := ci.repo.repo.LookupCommit(oid)
	if lookupErr != nil {
		return ci.Next()
	}

	return &Commit{commit: commit, repo: ci.repo}, nil
}

// Close releases resources.
func (ci *CommitIter) Close() {
	if ci.walk != nil {
		ci.walk.Free()
		ci.walk = nil
	}
}
