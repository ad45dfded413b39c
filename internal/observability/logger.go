// Package observability provides pmdminer's structured logging and
// Prometheus metrics.
package observability

import (
	"context"
	"log/slog"
	"os"
)

type contextKey int

const (
	runIDKey contextKey = iota
	workerIDKey
)

const (
	attrRunID    = "run_id"
	attrWorkerID = "worker_id"
	attrMode     = "mode"
)

// AppMode distinguishes batch runs from the ad hoc summary command.
type AppMode string

const (
	ModeMine    AppMode = "mine"
	ModeSummary AppMode = "summary"
)

// WithRunID attaches a batch run identifier to ctx, picked up by any logger
// derived from NewLogger when logging through that ctx.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithWorkerID attaches a scheduler worker identifier to ctx.
func WithWorkerID(ctx context.Context, workerID string) context.Context {
	return context.WithValue(ctx, workerIDKey, workerID)
}

// RunHandler is an [slog.Handler] that injects the batch run id and worker
// id (when present on the context) into every log record, alongside
// service metadata attached once at construction.
type RunHandler struct {
	inner slog.Handler
}

// NewRunHandler wraps inner, pre-attaching mode as a top-level attribute so
// it survives WithGroup calls.
func NewRunHandler(inner slog.Handler, mode AppMode) *RunHandler {
	return &RunHandler{
		inner: inner.WithAttrs([]slog.Attr{slog.String(attrMode, string(mode))}),
	}
}

func (h *RunHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *RunHandler) Handle(ctx context.Context, record slog.Record) error {
	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		record.AddAttrs(slog.String(attrRunID, runID))
	}

	if workerID, ok := ctx.Value(workerIDKey).(string); ok && workerID != "" {
		record.AddAttrs(slog.String(attrWorkerID, workerID))
	}

	return h.inner.Handle(ctx, record) //nolint:wrapcheck
}

func (h *RunHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RunHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *RunHandler) WithGroup(name string) slog.Handler {
	return &RunHandler{inner: h.inner.WithGroup(name)}
}

// NewLogger builds the application logger: JSON or text handler per format,
// filtered at level, wrapped in a RunHandler for the given mode.
func NewLogger(format, level string, mode AppMode) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var base slog.Handler
	if format == "text" {
		base = slog.NewTextHandler(os.Stderr, opts)
	} else {
		base = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(NewRunHandler(base, mode))
}
