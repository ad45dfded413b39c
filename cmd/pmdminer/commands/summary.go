package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
)

type summaryOptions struct {
	format string
}

// NewSummaryCommand builds the "summary" subcommand: a read-only renderer
// for a previously written summary.json. It has no effect on a mine run's
// exit code and never re-runs aggregation.
func NewSummaryCommand() *cobra.Command {
	opts := &summaryOptions{}

	cmd := &cobra.Command{
		Use:   "summary <output-dir>",
		Short: "Render a previously written summary.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "table", "output format: table or json")

	return cmd
}

func runSummary(cmd *cobra.Command, outputDir string, opts *summaryOptions) error {
	path := filepath.Join(outputDir, "summary.json")

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", mining.ErrDisk, path, err)
	}

	var summary mining.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return fmt.Errorf("%w: decode %s: %w", mining.ErrDisk, path, err)
	}

	switch opts.format {
	case "json":
		return printSummaryJSON(cmd, &summary)
	case "table":
		printSummaryTable(cmd, &summary)
		return nil
	default:
		return fmt.Errorf("%w: unknown format %q", mining.ErrInvalidArguments, opts.format)
	}
}

func printSummaryJSON(cmd *cobra.Command, summary *mining.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode summary: %w", mining.ErrDisk, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	return nil
}

func printSummaryTable(cmd *cobra.Command, summary *mining.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"metric", "value"})
	t.AppendRows([]table.Row{
		{"location", summary.Location},
		{"commits mined", summary.StatOfRepository.NumberOfCommits},
		{"failed/skipped commits", len(summary.StatOfErrors)},
		{"avg java files/commit", fmt.Sprintf("%.2f", summary.StatOfRepository.AvgNumJavaFiles)},
		{"avg warnings/commit", fmt.Sprintf("%.2f", summary.StatOfRepository.AvgNumWarnings)},
	})
	t.Render()

	if len(summary.StatOfWarnings) == 0 {
		return
	}

	rules := make([]string, 0, len(summary.StatOfWarnings))
	for rule := range summary.StatOfWarnings {
		rules = append(rules, rule)
	}

	sort.Strings(rules)

	rt := table.NewWriter()
	rt.SetOutputMirror(cmd.OutOrStdout())
	rt.SetStyle(table.StyleLight)
	rt.AppendHeader(table.Row{"rule", "occurrences"})

	for _, rule := range rules {
		rt.AppendRow(table.Row{rule, summary.StatOfWarnings[rule]})
	}

	rt.Render()
}
