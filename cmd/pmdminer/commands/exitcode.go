// Package commands implements pmdminer's CLI subcommands.
package commands

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
)

// Process exit codes, mirroring the error classes a mining batch can fail with.
const (
	ExitOK               = 0
	ExitInvalidArguments = 2
	ExitRepositoryError  = 3
	ExitAnalyzerError    = 4
	ExitPartialFailure   = 5
	ExitInterrupted      = 130
)

// ExitCodeFor maps a returned error to the process exit code it should
// produce, falling back to 1 for anything unrecognized.
//
// ErrRepository and ErrAnalyzerUnreachable are setup-phase failures: the
// batch never got underway, so they take the specific codes 3 and 4.
// ErrCheckoutFailure, ErrAnalyzerProtocol, and ErrAnalyzerInternal are
// per-commit outcomes — the scheduler recovers from them locally and
// never lets them reach here directly, but if one ever did leak through
// unwrapped, it belongs with the partial-failure code, not a setup code,
// since by definition some other commit ran far enough to observe it.
// ErrDisk and ErrCacheCorrupt share that same code: the error handling
// design gives them no exit code of their own, only "exit nonzero".
func ExitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitInterrupted
	case errors.Is(err, mining.ErrInvalidArguments):
		return ExitInvalidArguments
	case errors.Is(err, mining.ErrRepository):
		return ExitRepositoryError
	case errors.Is(err, mining.ErrAnalyzerUnreachable):
		return ExitAnalyzerError
	case errors.Is(err, mining.ErrPartialFailure),
		errors.Is(err, mining.ErrCheckoutFailure),
		errors.Is(err, mining.ErrAnalyzerProtocol),
		errors.Is(err, mining.ErrAnalyzerInternal),
		errors.Is(err, mining.ErrDisk),
		errors.Is(err, mining.ErrCacheCorrupt):
		return ExitPartialFailure
	default:
		return 1
	}
}
