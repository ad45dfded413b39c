package repository_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pmdminer/internal/repository"
)

// newFixtureRepo creates a tiny two-commit git repository on disk using the
// git CLI, used purely as test fixture setup (production code never shells
// out to git; it goes through pkg/gitlib's libgit2 bindings).
func newFixtureRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}

	run("init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Main.java"), []byte("class Main {}"), 0o600))
	run("add", ".")
	run("commit", "-q", "-m", "initial")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Main.java"), []byte("class Main { void m() {} }"), 0o600))
	run("add", ".")
	run("commit", "-q", "-m", "second")

	return dir
}

func TestManager_InitializeOpensLocalRepoAndEnumeratesCommits(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	repoDir := newFixtureRepo(t)
	workDir := t.TempDir()

	mgr, err := repository.Initialize(context.Background(), repoDir, workDir)
	require.NoError(t, err)
	defer mgr.ReleaseAll() //nolint:errcheck

	commits, err := mgr.Commits()
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "initial", commits[0].Message())
	assert.Equal(t, "second", commits[1].Message())
}

func TestManager_AcquireWorktreeAndCheckout(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	repoDir := newFixtureRepo(t)
	workDir := t.TempDir()

	mgr, err := repository.Initialize(context.Background(), repoDir, workDir)
	require.NoError(t, err)
	defer mgr.ReleaseAll() //nolint:errcheck

	commits, err := mgr.Commits()
	require.NoError(t, err)

	wt, err := mgr.AcquireWorktree("worker-0")
	require.NoError(t, err)

	require.NoError(t, mgr.Checkout(context.Background(), wt, commits[0].Hash()))

	data, err := os.ReadFile(filepath.Join(wt.Path(), "Main.java"))
	require.NoError(t, err)
	assert.Equal(t, "class Main {}", string(data))

	require.NoError(t, mgr.Checkout(context.Background(), wt, commits[1].Hash()))
	data, err = os.ReadFile(filepath.Join(wt.Path(), "Main.java"))
	require.NoError(t, err)
	assert.Equal(t, "class Main { void m() {} }", string(data))
}
