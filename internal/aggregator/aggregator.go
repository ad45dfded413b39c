// Package aggregator computes the batch-wide Summary from every persisted
// CommitResult and writes it to disk.
package aggregator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
)

// Aggregate reads every "*.json" file under "<outputDir>/pmd_results",
// computes the batch summary, and writes it to "<outputDir>/summary.json".
// An empty result set yields a zero-valued Summary rather than an error,
// per the arithmetic-mean divide-by-zero contract.
func Aggregate(outputDir string) (*mining.Summary, error) {
	results, err := loadResults(outputDir)
	if err != nil {
		return nil, err
	}

	location, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve output dir: %w", mining.ErrDisk, err)
	}

	summary := compute(location, results)

	if err := writeSummary(outputDir, summary); err != nil {
		return nil, err
	}

	return summary, nil
}

func loadResults(outputDir string) ([]mining.CommitResult, error) {
	resultsDir := filepath.Join(outputDir, "pmd_results")

	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: read results dir: %w", mining.ErrDisk, err)
	}

	results := make([]mining.CommitResult, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, readErr := os.ReadFile(filepath.Join(resultsDir, entry.Name()))
		if readErr != nil {
			return nil, fmt.Errorf("%w: read %s: %w", mining.ErrDisk, entry.Name(), readErr)
		}

		var result mining.CommitResult
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", mining.ErrDisk, entry.Name(), err)
		}

		results = append(results, result)
	}

	return results, nil
}

func compute(location string, results []mining.CommitResult) *mining.Summary {
	summary := &mining.Summary{
		Location:       location,
		StatOfWarnings: map[string]int{},
		StatOfErrors:   map[string]string{},
	}

	var successful []mining.CommitResult

	for _, r := range results {
		if r.AnalysisError != "" {
			summary.StatOfErrors[r.CommitHash] = r.AnalysisError
			continue
		}

		successful = append(successful, r)
	}

	summary.StatOfRepository.NumberOfCommits = len(successful)

	if len(successful) == 0 {
		return summary
	}

	var totalFiles, totalWarnings int

	for _, r := range successful {
		totalFiles += r.NumJavaFiles
		totalWarnings += r.NumWarnings

		for _, f := range r.Findings {
			summary.StatOfWarnings[f.RuleName]++
		}
	}

	n := float64(len(successful))
	summary.StatOfRepository.AvgNumJavaFiles = float64(totalFiles) / n
	summary.StatOfRepository.AvgNumWarnings = float64(totalWarnings) / n

	return summary
}

func writeSummary(outputDir string, summary *mining.Summary) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("%w: create output dir: %w", mining.ErrDisk, err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode summary: %w", mining.ErrDisk, err)
	}

	finalPath := filepath.Join(outputDir, "summary.json")
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("%w: write summary: %w", mining.ErrDisk, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("%w: rename summary into place: %w", mining.ErrDisk, err)
	}

	return nil
}
