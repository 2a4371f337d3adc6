package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewFormatsCategoryAndSeverity(t *testing.T) {
	e := New(SeverityRecoverable, CategoryTile, "atlas full, evicting")
	got := e.Error()
	want := "tile/recoverable: atlas full, evicting"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWrapIncludesCause(t *testing.T) {
	cause := errors.New("underlying")
	e := Wrap(SeverityUnrecoverable, CategorySurface, "surface permanently lost", cause)
	if !errors.Is(e, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
	if got := e.Unwrap(); got != cause {
		t.Fatalf("expected Unwrap to return the cause")
	}
}

func TestLogicBugShape(t *testing.T) {
	e := LogicBug("duplicate ack for receipt 4")
	if e.Severity != SeverityLogicBug || e.Category != CategoryLogicBug {
		t.Fatalf("expected logic_bug severity/category, got %v/%v", e.Severity, e.Category)
	}
}

func TestUnrecoverableShape(t *testing.T) {
	e := Unrecoverable("atlas gpu drain failed", ErrOutOfMemory)
	if e.Severity != SeverityUnrecoverable {
		t.Fatalf("expected unrecoverable severity")
	}
	if !errors.Is(e, ErrOutOfMemory) {
		t.Fatalf("expected wrapped sentinel to be reachable via errors.Is")
	}
}

func TestIsAppCoreErrorFindsWrappedError(t *testing.T) {
	inner := New(SeverityRecoverable, CategoryMerge, "merge failed")
	wrapped := fmt.Errorf("enqueue failed: %w", inner)

	found, ok := IsAppCoreError(wrapped)
	if !ok {
		t.Fatalf("expected IsAppCoreError to find the wrapped AppCoreError")
	}
	if found.Category != CategoryMerge {
		t.Fatalf("expected the found error's category to be merge, got %v", found.Category)
	}
}

func TestIsAppCoreErrorFalseForPlainError(t *testing.T) {
	if _, ok := IsAppCoreError(errors.New("plain")); ok {
		t.Fatalf("expected a plain error not to be recognized as an AppCoreError")
	}
}

func TestIsUnrecoverableAndIsRecoverable(t *testing.T) {
	u := Unrecoverable("oom", ErrOutOfMemory)
	r := New(SeverityRecoverable, CategorySurface, "surface outdated")

	if !IsUnrecoverable(u) {
		t.Fatalf("expected u to be classified unrecoverable")
	}
	if IsRecoverable(u) {
		t.Fatalf("expected u not to be classified recoverable")
	}
	if !IsRecoverable(r) {
		t.Fatalf("expected r to be classified recoverable")
	}
	if IsUnrecoverable(r) {
		t.Fatalf("expected r not to be classified unrecoverable")
	}
}

func TestSeverityAndCategoryStringers(t *testing.T) {
	cases := []struct {
		sev  Severity
		want string
	}{
		{SeverityLogicBug, "logic_bug"},
		{SeverityRecoverable, "recoverable"},
		{SeverityUnrecoverable, "unrecoverable"},
	}
	for _, c := range cases {
		if got := c.sev.String(); got != c.want {
			t.Errorf("Severity(%d).String() = %q, want %q", c.sev, got, c.want)
		}
	}

	catCases := []struct {
		cat  Category
		want string
	}{
		{CategoryRuntime, "runtime"},
		{CategoryTile, "tile"},
		{CategoryMerge, "merge"},
		{CategorySurface, "surface"},
		{CategoryBrush, "brush"},
		{CategoryLogicBug, "logic_bug"},
		{CategoryUnrecoverable, "unrecoverable"},
	}
	for _, c := range catCases {
		if got := c.cat.String(); got != c.want {
			t.Errorf("Category(%d).String() = %q, want %q", c.cat, got, c.want)
		}
	}
}
