// Package applog is the engine-wide logger: a package-level, atomically
// swappable *slog.Logger with a zero-cost nop default, gated behind
// per-category environment switches (BRUSH_TRACE, RENDER_TREE_TRACE,
// RENDER_TREE_INVARIANTS, PERF_LOG, FRAME_SCHEDULER_TRACE, QUIET).
package applog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

// nopHandler silently discards all log records. Enabled returns false so
// callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger installs the logger used for all engine diagnostic output.
// Passing nil restores the silent default. Safe for concurrent use.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the currently installed logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// Category is one of the diagnostic categories gated by its own
// environment switch.
type Category int

const (
	CategoryBrushTrace Category = iota
	CategoryRenderTreeTrace
	CategoryRenderTreeInvariants
	CategoryPerf
	CategoryFrameSchedulerTrace
)

func (c Category) envVar() string {
	switch c {
	case CategoryBrushTrace:
		return "BRUSH_TRACE"
	case CategoryRenderTreeTrace:
		return "RENDER_TREE_TRACE"
	case CategoryRenderTreeInvariants:
		return "RENDER_TREE_INVARIANTS"
	case CategoryPerf:
		return "PERF_LOG"
	case CategoryFrameSchedulerTrace:
		return "FRAME_SCHEDULER_TRACE"
	default:
		return ""
	}
}

// Enabled reports whether diagnostic output for category c should be
// produced: its own environment switch is set, and QUIET is not. Read
// directly with os.Getenv at the point of use — none of this gates the
// core's actual behavior, only its log output.
func Enabled(c Category) bool {
	if os.Getenv("QUIET") != "" {
		return false
	}
	return os.Getenv(c.envVar()) != ""
}

// Debugf logs a debug-level message under category c if it is enabled.
// A no-op (and allocation-free beyond the format, skipped when disabled)
// otherwise.
func Debugf(c Category, format string, args ...any) {
	if !Enabled(c) {
		return
	}
	Logger().Debug(fmt.Sprintf(format, args...))
}
