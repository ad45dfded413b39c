// Package commitjob implements the unit of work a scheduler worker performs
// for one commit: checkout, discover Java files, split cached from
// to-analyze content, call the Analyzer for the latter, merge, cache, and
// persist the result.
package commitjob

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/pmdminer/internal/analyzerclient"
	"github.com/Sumatoshi-tech/pmdminer/internal/filecache"
	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
	"github.com/Sumatoshi-tech/pmdminer/internal/repository"
	"github.com/Sumatoshi-tech/pmdminer/pkg/gitlib"
)

// Deps bundles the collaborators a commit job needs. A single instance is
// shared read-only across every scheduler worker; only the Worktree
// parameter to Run varies per call.
type Deps struct {
	Manager     *repository.Manager
	Cache       *filecache.Cache
	Analyzer    *analyzerclient.Client
	RulesetPath string
	RulesetID   string
	AuxJars     []string
	OutputDir   string
}

type fileContent struct {
	relPath string
	content []byte
}

// Run performs the full commit job and returns the persisted result.
// ctx is checked before the job starts and before the Analyzer call, and
// is passed to the checkout and the Analyzer request, so canceling it can
// stop a commit part way; such a commit persists no result.
func Run(ctx context.Context, deps Deps, wt *gitlib.Worktree, commit *gitlib.Commit) (*mining.CommitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("commit job canceled before start: %w", err)
	}

	hash := commit.Hash()

	if err := deps.Manager.Checkout(ctx, wt, hash); err != nil {
		return nil, err
	}

	files, err := discoverJavaFiles(wt.Path())
	if err != nil {
		return nil, fmt.Errorf("%w: discover files at %s: %w", mining.ErrDisk, hash, err)
	}

	cached, toAnalyze := classify(deps.Cache, deps.RulesetID, files)

	findings := make([]mining.Finding, 0, len(cached))
	for _, f := range cached {
		findings = append(findings, f...)
	}

	if len(toAnalyze) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("commit job canceled before analysis: %w", err)
		}

		analyzed, err := analyze(ctx, deps, toAnalyze)
		if err != nil {
			return nil, err
		}

		findings = append(findings, analyzed...)
	}

	mining.SortFindings(findings)

	result := &mining.CommitResult{
		CommitHash:   hash.String(),
		NumJavaFiles: len(files),
		NumWarnings:  len(findings),
		Findings:     findings,
	}

	if err := persistResult(deps.OutputDir, result); err != nil {
		return nil, err
	}

	return result, nil
}

// discoverJavaFiles walks the worktree, returning every ".java" file's
// path relative to the worktree root and its content, skipping ".git".
func discoverJavaFiles(root string) ([]fileContent, error) {
	var files []fileContent

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}

			return nil
		}

		if !strings.HasSuffix(d.Name(), ".java") {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		files = append(files, fileContent{relPath: rel, content: content})

		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return files, nil
}

// classify splits files into those already present in the cache and those
// requiring an Analyzer call, returning one findings slice per cache hit
// with each finding's File set to that file's relative path.
func classify(cache *filecache.Cache, rulesetID string, files []fileContent) (cachedFindings [][]mining.Finding, toAnalyze []fileContent) {
	for _, f := range files {
		key := mining.CacheKey{ContentHash: filecache.ContentHash(f.content), RulesetID: rulesetID}

		if findings, ok := cache.Get(key); ok {
			cachedFindings = append(cachedFindings, attributeTo(findings, f.relPath))
			continue
		}

		toAnalyze = append(toAnalyze, f)
	}

	return cachedFindings, toAnalyze
}

// attributeTo rewrites cached findings' File field to the current commit's
// relative path, since a cache hit means identical content, not identical
// path (a file may have moved).
func attributeTo(findings []mining.Finding, relPath string) []mining.Finding {
	out := make([]mining.Finding, len(findings))

	for i, f := range findings {
		f.File = relPath
		out[i] = f
	}

	return out
}

func analyze(ctx context.Context, deps Deps, files []fileContent) ([]mining.Finding, error) {
	req := analyzerclient.AnalyzeRequest{
		RulesetPath: deps.RulesetPath,
		AuxJars:     deps.AuxJars,
		Files:       make([]analyzerclient.FileInput, 0, len(files)),
	}

	for _, f := range files {
		req.Files = append(req.Files, analyzerclient.FileInput{Path: f.relPath, Content: string(f.content)})
	}

	resp, err := deps.Analyzer.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	byPath := make(map[string][]mining.Finding, len(files))
	for _, finding := range resp.Findings {
		byPath[finding.File] = append(byPath[finding.File], finding)
	}

	for _, f := range files {
		key := mining.CacheKey{ContentHash: filecache.ContentHash(f.content), RulesetID: deps.RulesetID}
		deps.Cache.Store(key, byPath[f.relPath])
	}

	return resp.Findings, nil
}

// persistResult writes result as "<output-dir>/pmd_results/<hash>.json"
// using a write-then-rename so a crash mid-write never leaves a partial
// file visible under its final name.
func persistResult(outputDir string, result *mining.CommitResult) error {
	resultsDir := filepath.Join(outputDir, "pmd_results")
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return fmt.Errorf("%w: create results dir: %w", mining.ErrDisk, err)
	}

	finalPath := filepath.Join(resultsDir, result.CommitHash+".json")
	tmpPath := finalPath + ".tmp"

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode result: %w", mining.ErrDisk, err)
	}

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("%w: write result: %w", mining.ErrDisk, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("%w: rename result into place: %w", mining.ErrDisk, err)
	}

	return nil
}
