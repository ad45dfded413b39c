package mining

import "errors"

// Sentinel errors wrapped with context via fmt.Errorf's %w throughout the
// mining pipeline. cmd/pmdminer maps these to process exit codes.
var (
	// ErrInvalidArguments covers CLI argument and configuration validation failures.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrRepository covers failures to open, clone, or enumerate a repository.
	ErrRepository = errors.New("repository error")

	// ErrCheckoutFailure covers worktree checkout failures for a specific commit.
	ErrCheckoutFailure = errors.New("checkout failure")

	// ErrAnalyzerUnreachable covers failure to reach the Analyzer over HTTP,
	// including exhausting the readiness probe.
	ErrAnalyzerUnreachable = errors.New("analyzer unreachable")

	// ErrAnalyzerProtocol covers a malformed or unexpected Analyzer response body.
	ErrAnalyzerProtocol = errors.New("analyzer protocol error")

	// ErrAnalyzerInternal covers the Analyzer reporting a server-side failure
	// (HTTP 5xx) for a specific request; such a response is not retried.
	ErrAnalyzerInternal = errors.New("analyzer internal error")

	// ErrCacheCorrupt covers a cache entry that fails to decode.
	ErrCacheCorrupt = errors.New("cache corrupt")

	// ErrDisk covers failures to read, write, or rename batch output files.
	ErrDisk = errors.New("disk error")

	// ErrPartialFailure covers a batch that ran to completion but skipped
	// or failed one or more commits along the way. It never originates
	// from a single commit job; the mine command raises it only after the
	// scheduler has finished without a batch-level error and summary.json
	// has been written.
	ErrPartialFailure = errors.New("partial failure")
)
