package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"canceled", context.Canceled, ExitInterrupted},
		{"invalid arguments", mining.ErrInvalidArguments, ExitInvalidArguments},
		{"repository", mining.ErrRepository, ExitRepositoryError},
		{"analyzer unreachable", mining.ErrAnalyzerUnreachable, ExitAnalyzerError},
		{"partial failure", mining.ErrPartialFailure, ExitPartialFailure},
		{"checkout is per-commit, not repository", mining.ErrCheckoutFailure, ExitPartialFailure},
		{"analyzer protocol is per-commit, not analyzer-unreachable", mining.ErrAnalyzerProtocol, ExitPartialFailure},
		{"analyzer internal is per-commit, not analyzer-unreachable", mining.ErrAnalyzerInternal, ExitPartialFailure},
		{"disk", mining.ErrDisk, ExitPartialFailure},
		{"cache corrupt", mining.ErrCacheCorrupt, ExitPartialFailure},
		{"unrecognized", errors.New("boom"), 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCodeFor(tc.err))
		})
	}
}

func TestExitCodeFor_WrappedError(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), mining.ErrAnalyzerInternal)
	assert.Equal(t, ExitPartialFailure, ExitCodeFor(wrapped))
}
