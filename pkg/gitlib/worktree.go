package gitlib

import (
	"context"
	"errors"
	"fmt"
	"os"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrWorktreeLocked is returned when a worktree administrative entry is
// locked and cannot be pruned.
var ErrWorktreeLocked = errors.New("worktree is locked")

// Worktree is a checkout directory attached to a base Repository's object
// database, exclusively usable by one caller at a time (spec: one per
// Worker for the lifetime of the batch).
type Worktree struct {
	name string
	path string
	base *Repository
	wt   *git2go.Worktree
	repo *Repository // the worktree's own repository handle
}

// AddWorktree creates a fresh worktree named name at path, attached to r's
// object database. It prunes any stale administrative entry with the same
// name and removes any residual directory first, so that a prior aborted
// batch never blocks a new one (spec §4.A: "must succeed even if a stale
// worktree directory exists from a prior aborted run").
func (r *Repository) AddWorktree(name, path string) (*Worktree, error) {
	if existing, lookupErr := r.repo.LookupWorktree(name); lookupErr == nil {
		pruneStaleWorktree(existing)
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove residual worktree dir %s: %w", path, err)
	}

	opts, optsErr := git2go.NewWorktreeAddOptions()
	if optsErr != nil {
		return nil, fmt.Errorf("build worktree add options: %w", optsErr)
	}

	wt, err := r.repo.AddWorktree(name, path, opts)
	if err != nil {
		return nil, fmt.Errorf("add worktree %s: %w", name, err)
	}

	checkoutRepo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open worktree repository %s: %w", path, err)
	}

	return &Worktree{
		name: name,
		path: path,
		base: r,
		wt:   wt,
		repo: &Repository{repo: checkoutRepo, path: path},
	}, nil
}

// pruneStaleWorktree best-effort prunes an administrative entry left behind
// by a prior abnormal termination. A locked entry is force-unlocked first
// since it can only have been locked by a batch that is no longer running.
func pruneStaleWorktree(wt *git2go.Worktree) {
	if locked, _ := wt.IsLocked(); locked {
		_ = wt.Unlock()
	}

	opts, err := git2go.NewWorktreePruneOptions()
	if err != nil {
		return
	}

	opts.Flags = git2go.WorktreePruneValid | git2go.WorktreePruneLocked | git2go.WorktreePruneWorkingTree
	_ = wt.Prune(opts)
}

// Path returns the worktree's filesystem path.
func (w *Worktree) Path() string {
	return w.path
}

// Name returns the worktree's administrative name (its worker id).
func (w *Worktree) Name() string {
	return w.name
}

// CheckoutDetached points the worktree at commit hash with a detached HEAD
// (spec §4.A: "Must detach HEAD, never update a branch ref") and force
// checks out the tree, removing any untracked residue from the previously
// checked-out commit so file enumeration is never polluted.
func (w *Worktree) CheckoutDetached(ctx context.Context, hash Hash) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("checkout canceled: %w", err)
	}

	commit, err := w.repo.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return fmt.Errorf("lookup commit %s: %w", hash, err)
	}
	defer commit.Free()

	if setErr := w.repo.repo.SetHeadDetached(hash.ToOid()); setErr != nil {
		return fmt.Errorf("set detached head to %s: %w", hash, setErr)
	}

	opts, optsErr := git2go.DefaultCheckoutOptions()
	if optsErr != nil {
		return fmt.Errorf("build checkout options: %w", optsErr)
	}

	opts.Strategy = git2go.CheckoutForce | git2go.CheckoutRemoveUntracked | git2go.CheckoutRemoveIgnored

	if coErr := w.repo.repo.CheckoutHead(&opts); coErr != nil {
		return fmt.Errorf("checkout head %s: %w", hash, coErr)
	}

	return nil
}

// Free releases the worktree's own repository handle. It does not remove
// the worktree from disk; use Repository.RemoveWorktree for teardown.
func (w *Worktree) Free() {
	if w.repo != nil {
		w.repo.Free()
		w.repo = nil
	}
}

// RemoveWorktree removes the named worktree's directory and prunes its
// administrative entry from the base repository (spec §4.A release_all).
func (r *Repository) RemoveWorktree(name, path string) error {
	wt, err := r.repo.LookupWorktree(name)
	if err != nil {
		// Nothing registered under this name; still try to clear the directory.
		return os.RemoveAll(path)
	}

	if locked, _ := wt.IsLocked(); locked {
		if unlockErr := wt.Unlock(); unlockErr != nil {
			return fmt.Errorf("%w: %s", ErrWorktreeLocked, name)
		}
	}

	if rmErr := os.RemoveAll(path); rmErr != nil {
		return fmt.Errorf("remove worktree dir %s: %w", path, rmErr)
	}

	opts, optsErr := git2go.NewWorktreePruneOptions()
	if optsErr != nil {
		return fmt.Errorf("build prune options: %w", optsErr)
	}

	opts.Flags = git2go.WorktreePruneValid | git2go.WorktreePruneLocked | git2go.WorktreePruneWorkingTree

	if pruneErr := wt.Prune(opts); pruneErr != nil {
		return fmt.Errorf("prune worktree %s: %w", name, pruneErr)
	}

	return nil
}
