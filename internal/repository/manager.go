// Package repository manages one base repository clone and the exclusive
// worktrees that scheduler workers check commits out into.
package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
	"github.com/Sumatoshi-tech/pmdminer/pkg/gitlib"
)

const (
	checkoutRetries    = 3
	checkoutRetryBase  = 200 * time.Millisecond
	checkoutRetryJitter = 150 * time.Millisecond
)

// Manager owns the base repository clone and every worktree derived from
// it. It is safe for concurrent use by multiple scheduler workers, each of
// which acquires exactly one worktree for the lifetime of the batch.
type Manager struct {
	base *gitlib.Repository
	dir  string

	mu        sync.Mutex
	worktrees map[string]*gitlib.Worktree
}

// Initialize opens repoLocation if it already exists as a local git
// repository, otherwise clones it (a URL) into workDir/source. workDir
// also hosts every worker's worktree directory, one per acquired name.
func Initialize(ctx context.Context, repoLocation, workDir string) (*Manager, error) {
	if info, statErr := os.Stat(repoLocation); statErr == nil && info.IsDir() {
		repo, openErr := gitlib.OpenRepository(repoLocation)
		if openErr != nil {
			return nil, fmt.Errorf("%w: open %s: %w", mining.ErrRepository, repoLocation, openErr)
		}

		return &Manager{base: repo, dir: workDir, worktrees: make(map[string]*gitlib.Worktree)}, nil
	}

	dest := filepath.Join(workDir, "source")

	repo, err := gitlib.CloneRepository(ctx, repoLocation, dest)
	if err != nil {
		return nil, fmt.Errorf("%w: clone %s: %w", mining.ErrRepository, repoLocation, err)
	}

	return &Manager{base: repo, dir: workDir, worktrees: make(map[string]*gitlib.Worktree)}, nil
}

// Commits enumerates every commit reachable from HEAD, oldest first.
func (m *Manager) Commits() ([]*gitlib.Commit, error) {
	commits, err := gitlib.AllCommits(m.base)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate commits: %w", mining.ErrRepository, err)
	}

	return commits, nil
}

// AcquireWorktree creates (or recreates, pruning any stale entry) the
// worktree named workerID, exclusively owned by the caller until
// ReleaseAll is called.
func (m *Manager) AcquireWorktree(workerID string) (*gitlib.Worktree, error) {
	path := filepath.Join(m.dir, "worktrees", workerID)

	wt, err := m.base.AddWorktree(workerID, path)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire worktree %s: %w", mining.ErrRepository, workerID, err)
	}

	m.mu.Lock()
	m.worktrees[workerID] = wt
	m.mu.Unlock()

	return wt, nil
}

// Checkout points wt at hash with a detached HEAD, making up to
// checkoutRetries attempts with jittered backoff between them. Failures are
// not classified: lock contention and every other checkout error are
// retried alike; only cancellation of ctx ends the attempts early.
func (m *Manager) Checkout(ctx context.Context, wt *gitlib.Worktree, hash gitlib.Hash) error {
	var lastErr error

	for attempt := 0; attempt < checkoutRetries; attempt++ {
		if attempt > 0 {
			jitter := time.Duration(rand.Int64N(int64(checkoutRetryJitter))) //nolint:gosec
			select {
			case <-time.After(checkoutRetryBase + jitter):
			case <-ctx.Done():
				return fmt.Errorf("%w: checkout %s canceled: %w", mining.ErrCheckoutFailure, hash, ctx.Err())
			}
		}

		err := wt.CheckoutDetached(ctx, hash)
		if err == nil {
			return nil
		}

		lastErr = err

		if errors.Is(ctx.Err(), context.Canceled) {
			break
		}
	}

	return fmt.Errorf("%w: checkout %s after %d attempts: %w", mining.ErrCheckoutFailure, hash, checkoutRetries, lastErr)
}

// ReleaseAll tears down every acquired worktree and frees the base
// repository handle. Safe to call once at the end of a batch.
func (m *Manager) ReleaseAll() error {
	m.mu.Lock()
	worktrees := m.worktrees
	m.worktrees = make(map[string]*gitlib.Worktree)
	m.mu.Unlock()

	var firstErr error

	for name, wt := range worktrees {
		wt.Free()

		if err := m.base.RemoveWorktree(name, wt.Path()); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: release worktree %s: %w", mining.ErrRepository, name, err)
		}
	}

	m.base.Free()

	return firstErr
}
