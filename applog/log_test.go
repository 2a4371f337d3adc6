package applog

import (
	"bytes"
	"log/slog"
	"os"
	"testing"
)

func TestDefaultLoggerIsSilent(t *testing.T) {
	SetLogger(nil)
	if Logger().Handler().Enabled(nil, slog.LevelError) {
		t.Fatalf("expected default logger to report all levels disabled")
	}
}

func TestSetLoggerInstallsGivenLogger(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	SetLogger(l)
	defer SetLogger(nil)

	Logger().Info("hello")
	if buf.Len() == 0 {
		t.Fatalf("expected installed logger to receive the log record")
	}
}

func TestSetLoggerNilRestoresSilentDefault(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	SetLogger(nil)
	Logger().Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected nil SetLogger to restore the silent default")
	}
}

func TestEnabledRequiresOwnSwitch(t *testing.T) {
	clearSwitches(t)
	if Enabled(CategoryBrushTrace) {
		t.Fatalf("expected category disabled with no environment switch set")
	}
	os.Setenv("BRUSH_TRACE", "1")
	defer os.Unsetenv("BRUSH_TRACE")
	if !Enabled(CategoryBrushTrace) {
		t.Fatalf("expected category enabled once its switch is set")
	}
}

func TestQuietShortCircuitsAllCategories(t *testing.T) {
	clearSwitches(t)
	os.Setenv("BRUSH_TRACE", "1")
	os.Setenv("PERF_LOG", "1")
	os.Setenv("QUIET", "1")
	defer os.Unsetenv("BRUSH_TRACE")
	defer os.Unsetenv("PERF_LOG")
	defer os.Unsetenv("QUIET")

	if Enabled(CategoryBrushTrace) || Enabled(CategoryPerf) {
		t.Fatalf("expected QUIET to suppress all categories even when individually enabled")
	}
}

func TestDebugfNoopWhenDisabled(t *testing.T) {
	clearSwitches(t)
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(nil)

	Debugf(CategoryRenderTreeTrace, "tile %d dirty", 7)
	if buf.Len() != 0 {
		t.Fatalf("expected Debugf to produce no output when its category switch is unset")
	}
}

func TestDebugfLogsWhenEnabled(t *testing.T) {
	clearSwitches(t)
	os.Setenv("RENDER_TREE_TRACE", "1")
	defer os.Unsetenv("RENDER_TREE_TRACE")

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(nil)

	Debugf(CategoryRenderTreeTrace, "tile %d dirty", 7)
	if buf.Len() == 0 {
		t.Fatalf("expected Debugf to produce output once its category switch is set")
	}
}

func clearSwitches(t *testing.T) {
	t.Helper()
	for _, v := range []string{"BRUSH_TRACE", "RENDER_TREE_TRACE", "RENDER_TREE_INVARIANTS", "PERF_LOG", "FRAME_SCHEDULER_TRACE", "QUIET"} {
		os.Unsetenv(v)
	}
}
