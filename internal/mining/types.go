// Package mining defines the shared vocabulary that the repository manager,
// file cache, analyzer client, commit job, scheduler, and aggregator all
// speak: the on-disk result shapes and the handful of value types passed
// between them.
package mining

import "sort"

// CacheKey identifies a cached analysis result: the content of one file,
// analyzed under one ruleset. Two files with identical bytes share a cache
// entry regardless of path or commit.
type CacheKey struct {
	ContentHash string
	RulesetID   string
}

// Finding is one rule violation reported by the Analyzer for a single file.
type Finding struct {
	File      string `json:"file"`
	BeginLine int    `json:"begin_line"`
	RuleName  string `json:"rule_name"`
	Priority  int    `json:"priority"`
	Message   string `json:"message"`
}

// SortFindings orders findings deterministically by file path, then begin
// line, then rule name, so results are reproducible regardless of the
// concurrency that produced them.
func SortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]

		if a.File != b.File {
			return a.File < b.File
		}

		if a.BeginLine != b.BeginLine {
			return a.BeginLine < b.BeginLine
		}

		return a.RuleName < b.RuleName
	})
}

// CommitResult is the persisted, per-commit outcome of a mining batch,
// written to "<output-dir>/pmd_results/<hash>.json".
type CommitResult struct {
	CommitHash    string    `json:"commit_hash"`
	NumJavaFiles  int       `json:"num_java_files"`
	NumWarnings   int       `json:"num_warnings"`
	Findings      []Finding `json:"findings"`
	AnalysisError string    `json:"analysis_error,omitempty"`
}

// RepositoryStats holds the per-batch arithmetic means computed over every
// successfully mined commit.
type RepositoryStats struct {
	NumberOfCommits int     `json:"number_of_commits"`
	AvgNumJavaFiles float64 `json:"avg_of_num_java_files"`
	AvgNumWarnings  float64 `json:"avg_of_num_warnings"`
}

// Summary is the aggregate outcome of a mining batch, written to
// "<output-dir>/summary.json".
type Summary struct {
	Location         string            `json:"location"`
	StatOfRepository RepositoryStats   `json:"stat_of_repository"`
	StatOfWarnings   map[string]int    `json:"stat_of_warnings"`
	StatOfErrors     map[string]string `json:"stat_of_errors"`
}
