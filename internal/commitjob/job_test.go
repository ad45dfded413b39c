package commitjob_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pmdminer/internal/analyzerclient"
	"github.com/Sumatoshi-tech/pmdminer/internal/commitjob"
	"github.com/Sumatoshi-tech/pmdminer/internal/filecache"
	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
	"github.com/Sumatoshi-tech/pmdminer/internal/repository"
)

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
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.java"), []byte("class A {}"), 0o600))
	run("add", ".")
	run("commit", "-q", "-m", "initial")

	return dir
}

func TestRun_AnalyzesThenCachesThenReusesOnNextCommit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	repoDir := newFixtureRepo(t)
	workDir := t.TempDir()
	outputDir := t.TempDir()

	var analyzeCalls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		analyzeCalls++

		var req analyzerclient.AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := analyzerclient.AnalyzeResponse{}
		for _, f := range req.Files {
			resp.Findings = append(resp.Findings, mining.Finding{File: f.Path, RuleName: "EmptyClassInit"})
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	mgr, err := repository.Initialize(context.Background(), repoDir, workDir)
	require.NoError(t, err)
	defer mgr.ReleaseAll() //nolint:errcheck

	commits, err := mgr.Commits()
	require.NoError(t, err)
	require.Len(t, commits, 1)

	wt, err := mgr.AcquireWorktree("worker-0")
	require.NoError(t, err)

	cache := filecache.New()
	deps := commitjob.Deps{
		Manager:     mgr,
		Cache:       cache,
		Analyzer:    analyzerclient.New(server.URL, time.Second, 1),
		RulesetPath: "java-basic.xml",
		RulesetID:   "java-basic",
		OutputDir:   outputDir,
	}

	result, err := commitjob.Run(context.Background(), deps, wt, commits[0])
	require.NoError(t, err)
	assert.Equal(t, 1, result.NumJavaFiles)
	assert.Equal(t, 1, result.NumWarnings)
	assert.Equal(t, 1, analyzeCalls)

	data, err := os.ReadFile(filepath.Join(outputDir, "pmd_results", commits[0].Hash().String()+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "EmptyClassInit")

	hits, misses := cache.Stats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(1), misses)

	// Re-running the same commit's content should hit the cache and not
	// call the Analyzer again.
	result2, err := commitjob.Run(context.Background(), deps, wt, commits[0])
	require.NoError(t, err)
	assert.Equal(t, 1, result2.NumWarnings)
	assert.Equal(t, 1, analyzeCalls)

	hits, _ = cache.Stats()
	assert.Equal(t, int64(1), hits)
}
