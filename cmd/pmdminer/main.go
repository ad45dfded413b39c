// Package main provides the entry point for the pmdminer CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/pmdminer/cmd/pmdminer/commands"
	"github.com/Sumatoshi-tech/pmdminer/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "pmdminer",
		Short: "Mine per-commit PMD analysis results across a repository's history",
		Long: `pmdminer walks every commit in a git repository, checks each one out into
an isolated worktree, submits its Java files to a PMD Analyzer service, and
writes one result file per commit plus a batch-wide summary.

Commands:
  mine      Run a mining batch against a repository
  summary   Render a previously written summary.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(commands.NewMineCommand(&verbose, &quiet))
	rootCmd.AddCommand(commands.NewSummaryCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitCodeFor(err))
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "pmdminer %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
