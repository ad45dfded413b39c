package commands

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/Sumatoshi-tech/pmdminer/internal/aggregator"
	"github.com/Sumatoshi-tech/pmdminer/internal/analyzerclient"
	"github.com/Sumatoshi-tech/pmdminer/internal/commitjob"
	"github.com/Sumatoshi-tech/pmdminer/internal/config"
	"github.com/Sumatoshi-tech/pmdminer/internal/filecache"
	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
	"github.com/Sumatoshi-tech/pmdminer/internal/observability"
	"github.com/Sumatoshi-tech/pmdminer/internal/repository"
	"github.com/Sumatoshi-tech/pmdminer/internal/scheduler"
)

type mineOptions struct {
	rulesetPath     string
	rulesetManifest string
	rulesetName     string
	outputDir       string
	analyzerURL     string
	auxJars         []string
	workers         int
	configFile      string
}

// NewMineCommand builds the "mine" subcommand: the full batch pipeline
// from repository enumeration through aggregated summary.
func NewMineCommand(verbose, quiet *bool) *cobra.Command {
	opts := &mineOptions{}

	cmd := &cobra.Command{
		Use:   "mine <repo-location>",
		Short: "Run a mining batch: analyze every commit's Java files with PMD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMine(cmd, args[0], opts, *verbose, *quiet)
		},
	}

	cmd.Flags().StringVarP(&opts.rulesetPath, "ruleset", "r", "", "path to the PMD ruleset file")
	cmd.Flags().StringVar(&opts.rulesetManifest, "ruleset-manifest", "", "path to a YAML file naming reusable rulesets")
	cmd.Flags().StringVar(&opts.rulesetName, "ruleset-name", "", "ruleset name to resolve from --ruleset-manifest")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "directory for results and summary.json (required)")
	cmd.Flags().StringVar(&opts.analyzerURL, "analyzer-url", "http://localhost:8090", "base URL of the Analyzer service")
	cmd.Flags().StringSliceVar(&opts.auxJars, "aux-jars", nil, "auxiliary classpath jars passed to the Analyzer")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "number of concurrent workers (default: number of CPUs)")
	cmd.Flags().StringVar(&opts.configFile, "config", "", "path to a pmdminer config file")

	return cmd
}

func runMine(cmd *cobra.Command, repoLocation string, opts *mineOptions, verbose, quiet bool) error {
	cfg, err := loadMineConfig(repoLocation, opts)
	if err != nil {
		return err
	}

	logLevel := "info"
	if verbose {
		logLevel = "debug"
	}

	logger := observability.NewLogger(cfg.Logging.Format, logLevel, observability.ModeMine)
	metrics := observability.NewBatchMetrics()

	if cfg.Metrics.Enabled {
		metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler()}

		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()

		defer metricsSrv.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := time.Now().UTC().Format("20060102T150405Z")
	ctx = observability.WithRunID(ctx, runID)

	logger.InfoContext(ctx, "starting mining batch", "repo", repoLocation, "workers", cfg.Mining.Workers)

	mgr, err := repository.Initialize(ctx, repoLocation, cfg.Mining.OutputDir)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := mgr.ReleaseAll(); releaseErr != nil {
			logger.Warn("failed to release worktrees", "error", releaseErr)
		}
	}()

	commits, err := mgr.Commits()
	if err != nil {
		return err
	}

	if len(commits) == 0 {
		logger.WarnContext(ctx, "repository has no commits reachable from HEAD")
	}

	cache := filecache.New()
	if loadErr := cache.Load(cfg.Mining.OutputDir); loadErr != nil {
		logger.WarnContext(ctx, "discarding unreadable file cache, starting empty", "error", loadErr)
	}

	analyzer := analyzerclient.New(cfg.Analyzer.BaseURL, cfg.Analyzer.AnalyzeTimeout, cfg.Analyzer.MaxRetries)

	logger.InfoContext(ctx, "waiting for analyzer readiness", "url", cfg.Analyzer.BaseURL)

	if err := analyzer.WaitReady(ctx, cfg.Analyzer.ReadinessTimeout); err != nil {
		return err
	}

	deps := commitjob.Deps{
		Manager:     mgr,
		Cache:       cache,
		Analyzer:    analyzer,
		RulesetPath: cfg.Mining.RulesetPath,
		RulesetID:   filecache.ContentHash([]byte(cfg.Mining.RulesetPath)),
		AuxJars:     cfg.Mining.AuxJars,
		OutputDir:   cfg.Mining.OutputDir,
	}

	// The scheduler already throttles progress callbacks to roughly once a
	// second, but a limiter here keeps the terminal quiet even if a future
	// caller drives progress reporting more eagerly.
	progressLimiter := rate.NewLimiter(rate.Every(500*time.Millisecond), 1)

	progress := func(done, total int) {
		if quiet {
			return
		}

		if done < total && !progressLimiter.Allow() {
			return
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%s %d/%d commits\n", color.CyanString("mining:"), done, total)
	}

	sched := scheduler.New(mgr, deps, logger, cfg.Mining.Workers, cfg.Mining.QueueFactor,
		scheduler.WithMetrics(metrics), scheduler.WithProgress(progress))

	start := time.Now()

	_, failedCount, runErr := sched.Run(ctx, commits)

	if saveErr := cache.Save(cfg.Mining.OutputDir); saveErr != nil {
		logger.Warn("failed to persist file cache", "error", saveErr)
	}

	// A batch interrupted mid-run leaves no summary.json: the set of
	// commits it would describe is itself incomplete.
	if runErr != nil {
		return runErr
	}

	summary, aggErr := aggregator.Aggregate(cfg.Mining.OutputDir)
	if aggErr != nil {
		return aggErr
	}

	if !quiet {
		printSummary(cmd, summary, time.Since(start))
	}

	if failedCount > 0 {
		return fmt.Errorf("%w: %d of %d commits skipped or failed", mining.ErrPartialFailure, failedCount, len(commits))
	}

	return nil
}

// loadMineConfig layers the mine subcommand's flags over the usual
// defaults/config-file/environment precedence by exporting them as
// PMDMINER_-prefixed environment variables before config.Load reads them.
func loadMineConfig(repoLocation string, opts *mineOptions) (*config.Config, error) {
	if opts.rulesetManifest != "" && opts.rulesetName != "" {
		manifest, err := config.LoadRulesetManifest(opts.rulesetManifest)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", mining.ErrInvalidArguments, err)
		}

		entry, ok := manifest.Resolve(opts.rulesetName)
		if !ok {
			return nil, fmt.Errorf("%w: ruleset %q not found in %s", mining.ErrInvalidArguments, opts.rulesetName, opts.rulesetManifest)
		}

		opts.rulesetPath = entry.Path
		if len(opts.auxJars) == 0 {
			opts.auxJars = entry.AuxJars
		}
	}

	if opts.rulesetPath != "" {
		os.Setenv("PMDMINER_MINING_RULESET", opts.rulesetPath)
	}

	if opts.outputDir != "" {
		os.Setenv("PMDMINER_MINING_OUTPUT_DIR", opts.outputDir)
	}

	if opts.analyzerURL != "" {
		os.Setenv("PMDMINER_ANALYZER_BASE_URL", opts.analyzerURL)
	}

	if opts.workers > 0 {
		os.Setenv("PMDMINER_MINING_WORKERS", strconv.Itoa(opts.workers))
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mining.ErrInvalidArguments, err)
	}

	cfg.Mining.RepoLocation = repoLocation

	if len(opts.auxJars) > 0 {
		cfg.Mining.AuxJars = opts.auxJars
	}

	if err := os.MkdirAll(cfg.Mining.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %w", mining.ErrDisk, err)
	}

	return cfg, nil
}

func printSummary(cmd *cobra.Command, summary *mining.Summary, elapsed time.Duration) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s %d commits mined in %s\n",
		color.GreenString("done:"), summary.StatOfRepository.NumberOfCommits, humanize.RelTime(time.Now().Add(-elapsed), time.Now(), "", ""))
	fmt.Fprintf(out, "  avg java files/commit: %.2f\n", summary.StatOfRepository.AvgNumJavaFiles)
	fmt.Fprintf(out, "  avg warnings/commit:   %.2f\n", summary.StatOfRepository.AvgNumWarnings)
	fmt.Fprintf(out, "  distinct rules fired:  %d\n", len(summary.StatOfWarnings))

	if len(summary.StatOfErrors) > 0 {
		fmt.Fprintf(out, "  %s %d commits skipped or failed\n", color.RedString("warning:"), len(summary.StatOfErrors))
	}
}
