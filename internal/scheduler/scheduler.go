// Package scheduler runs a mining batch's commits through a bounded pool of
// workers, each holding one exclusive worktree for the batch's lifetime.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/pmdminer/internal/commitjob"
	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
	"github.com/Sumatoshi-tech/pmdminer/internal/observability"
	"github.com/Sumatoshi-tech/pmdminer/internal/repository"
	"github.com/Sumatoshi-tech/pmdminer/pkg/gitlib"
)

const progressInterval = time.Second

// ProgressFunc is called at most once per second with the number of
// commits completed so far out of the batch total, plus once more when
// the batch ends.
type ProgressFunc func(done, total int)

// Scheduler dispatches commits to a fixed pool of workers.
type Scheduler struct {
	manager  *repository.Manager
	deps     commitjob.Deps
	workers  int
	queueCap int
	metrics  *observability.BatchMetrics
	logger   *slog.Logger
	progress ProgressFunc
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithMetrics attaches Prometheus instruments to the scheduler.
func WithMetrics(m *observability.BatchMetrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithProgress registers a callback invoked roughly once per second with
// batch progress.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Scheduler) { s.progress = fn }
}

// New builds a Scheduler with workers goroutines and a FIFO dispatch queue
// sized at workers*queueFactor, bounding memory when commit discovery
// outruns processing.
func New(manager *repository.Manager, deps commitjob.Deps, logger *slog.Logger, workers, queueFactor int, opts ...Option) *Scheduler {
	s := &Scheduler{
		manager:  manager,
		deps:     deps,
		workers:  workers,
		queueCap: workers * queueFactor,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type outcome struct {
	result *mining.CommitResult
	err    error
	commit *gitlib.Commit
}

// batchLevelError reports whether err aborts the whole batch rather than
// being recovered locally for one commit. CheckoutFailure, AnalyzerProtocol,
// and AnalyzerInternal are per-commit per the error handling policy: a
// worker logs them and moves on to the next commit. Everything else
// (failure to acquire a worktree at all, a dead Analyzer, a corrupt cache,
// a disk failure on persist, or cancellation) reflects the batch itself
// being unable to continue.
func batchLevelError(err error) bool {
	return errors.Is(err, mining.ErrRepository) ||
		errors.Is(err, mining.ErrAnalyzerUnreachable) ||
		errors.Is(err, mining.ErrCacheCorrupt) ||
		errors.Is(err, mining.ErrDisk) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Run dispatches every commit to the worker pool and returns results in
// the same order as commits, regardless of completion order, along with
// the count of commits that were individually skipped or failed.
// Cancellation via ctx is honored between commits: a commit already being
// processed by a worker always runs to completion.
//
// The returned error is never one of the per-commit sentinels
// (ErrCheckoutFailure, ErrAnalyzerProtocol, ErrAnalyzerInternal) — those
// are recovered locally and folded into failedCount instead. A non-nil
// error here always means the batch itself could not continue.
func (s *Scheduler) Run(ctx context.Context, commits []*gitlib.Commit) (results []*mining.CommitResult, failedCount int, err error) {
	jobs := make(chan indexedCommit, s.queueCap)
	outcomes := make(chan indexedOutcome, s.queueCap)

	var wg sync.WaitGroup

	for w := 0; w < s.workers; w++ {
		wg.Add(1)

		workerID := fmt.Sprintf("worker-%d", w)

		go func() {
			defer wg.Done()
			s.runWorker(ctx, workerID, jobs, outcomes)
		}()
	}

	go func() {
		defer close(jobs)

		for i, commit := range commits {
			select {
			case jobs <- indexedCommit{index: i, commit: commit}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	results = make([]*mining.CommitResult, len(commits))
	done := 0
	lastReport := time.Time{}

	for oc := range outcomes {
		done++

		switch {
		case oc.err == nil:
			results[oc.index] = oc.result

			if s.metrics != nil {
				s.metrics.CommitsTotal.WithLabelValues("ok").Inc()
			}
		case batchLevelError(oc.err):
			if s.logger != nil {
				s.logger.Error("batch cannot continue", "commit", oc.commit.Hash().String(),
					"message", oc.commit.Message(), "parents", oc.commit.NumParents(), "error", oc.err)
			}

			if s.metrics != nil {
				s.metrics.CommitsTotal.WithLabelValues("error").Inc()
			}

			if err == nil {
				err = oc.err
			}
		default:
			if s.logger != nil {
				s.logger.Warn("commit skipped or failed, continuing", "commit", oc.commit.Hash().String(),
					"message", oc.commit.Message(), "parents", oc.commit.NumParents(), "error", oc.err)
			}

			if s.metrics != nil {
				s.metrics.CommitsTotal.WithLabelValues("error").Inc()
			}

			failedCount++
		}

		if s.progress != nil && time.Since(lastReport) >= progressInterval {
			s.progress(done, len(commits))
			lastReport = time.Now()
		}
	}

	if s.progress != nil {
		s.progress(done, len(commits))
	}

	// The dispatcher stops early only on cancellation; report it even when
	// no worker observed it.
	if err == nil && done < len(commits) {
		err = ctx.Err()
	}

	return results, failedCount, err
}

type indexedCommit struct {
	index  int
	commit *gitlib.Commit
}

type indexedOutcome struct {
	outcome
	index int
}

func (s *Scheduler) runWorker(ctx context.Context, workerID string, jobs <-chan indexedCommit, outcomes chan<- indexedOutcome) {
	// libgit2 handles are not safe to migrate across OS threads; pin this
	// goroutine to one so every checkout for this worker's worktree stays
	// on the thread that opened it.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	wt, err := s.manager.AcquireWorktree(workerID)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to acquire worktree", "worker", workerID, "error", err)
		}

		for job := range jobs {
			outcomes <- indexedOutcome{outcome: outcome{commit: job.commit, err: err}, index: job.index}
		}

		return
	}

	if s.metrics != nil {
		s.metrics.WorktreesInUse.Inc()
		defer s.metrics.WorktreesInUse.Dec()
	}

	workerCtx := observability.WithWorkerID(ctx, workerID)

	for job := range jobs {
		start := time.Now()

		result, runErr := commitjob.Run(context.WithoutCancel(workerCtx), s.deps, wt, job.commit)

		if s.metrics != nil {
			s.metrics.CommitDuration.Observe(time.Since(start).Seconds())
		}

		outcomes <- indexedOutcome{outcome: outcome{result: result, err: runErr, commit: job.commit}, index: job.index}

		if ctx.Err() != nil {
			// Drain remaining jobs without processing them so the
			// dispatcher and this worker both terminate cleanly.
			for remaining := range jobs {
				outcomes <- indexedOutcome{
					outcome: outcome{commit: remaining.commit, err: ctx.Err()},
					index:   remaining.index,
				}
			}

			return
		}
	}
}
