// Package apperror is the engine-side unified error type: AppCoreError
// wraps the runtime fabric's passthrough errors together with surface,
// brush, merge, logic-bug, and unrecoverable failures for uniform
// handling at the top-level loop. Struct errors carry Error()/Unwrap()
// plus errors.As-based IsXxxError helpers; simple cases use sentinel
// errors.New values instead.
package apperror

import (
	"errors"
	"fmt"
)

// Severity is one of the three error taxonomies the engine distinguishes.
type Severity int

const (
	// SeverityLogicBug is an invariant violation: unexpected receipt
	// kind, generation mismatch on a key that should be live, duplicate
	// ack, waterline regression. Hard assertion in debug builds,
	// propagated with full context in release builds.
	SeverityLogicBug Severity = iota
	// SeverityRecoverable covers surface lost/outdated, surface
	// timeout, tile atlas full, and merge failure — the event loop
	// continues after handling.
	SeverityRecoverable
	// SeverityUnrecoverable covers out of memory, tile atlas GPU drain
	// failure, and surface permanently lost after a reconfigure
	// attempt — the event loop terminates after a final diagnostic.
	SeverityUnrecoverable
)

func (s Severity) String() string {
	switch s {
	case SeverityLogicBug:
		return "logic_bug"
	case SeverityRecoverable:
		return "recoverable"
	case SeverityUnrecoverable:
		return "unrecoverable"
	default:
		return "unknown"
	}
}

// Category classifies which subsystem an AppCoreError originated from.
type Category int

const (
	CategoryRuntime Category = iota
	CategoryTile
	CategoryMerge
	CategorySurface
	CategoryBrush
	CategoryLogicBug
	CategoryUnrecoverable
)

func (c Category) String() string {
	switch c {
	case CategoryRuntime:
		return "runtime"
	case CategoryTile:
		return "tile"
	case CategoryMerge:
		return "merge"
	case CategorySurface:
		return "surface"
	case CategoryBrush:
		return "brush"
	case CategoryLogicBug:
		return "logic_bug"
	case CategoryUnrecoverable:
		return "unrecoverable"
	default:
		return "unknown"
	}
}

// Sentinel errors for simple cases with no extra context to carry.
var (
	ErrAtlasFull          = errors.New("tile atlas full")
	ErrSurfaceLost        = errors.New("surface lost")
	ErrSurfaceOutdated    = errors.New("surface outdated")
	ErrSurfaceTimeout     = errors.New("surface acquire timeout")
	ErrDuplicateAck       = errors.New("duplicate merge ack")
	ErrWaterlineRegressed = errors.New("waterline regression")
	ErrOutOfMemory        = errors.New("out of memory")
)

// AppCoreError is the unified error type the outermost event loop
// switches on. It wraps component errors (runtime fabric, tile atlas,
// merge engine, surface, brush enqueue) with a severity and category for
// uniform handling: a small struct carrying context plus an Unwrap-able
// cause.
type AppCoreError struct {
	Severity Severity
	Category Category
	Message  string
	Cause    error
}

func (e *AppCoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s/%s: %s", e.Category, e.Severity, e.Message)
}

func (e *AppCoreError) Unwrap() error { return e.Cause }

// New constructs an AppCoreError.
func New(sev Severity, cat Category, message string) *AppCoreError {
	return &AppCoreError{Severity: sev, Category: cat, Message: message}
}

// Wrap constructs an AppCoreError carrying cause as its Unwrap target.
func Wrap(sev Severity, cat Category, message string, cause error) *AppCoreError {
	return &AppCoreError{Severity: sev, Category: cat, Message: message, Cause: cause}
}

// LogicBug constructs a SeverityLogicBug/CategoryLogicBug error, the
// uniform shape for an invariant violation propagated to the outermost
// loop in a release build.
func LogicBug(message string) *AppCoreError {
	return New(SeverityLogicBug, CategoryLogicBug, message)
}

// Unrecoverable constructs a SeverityUnrecoverable/CategoryUnrecoverable
// error wrapping cause — the shape the top-level loop checks to decide
// whether to terminate after a final diagnostic frame.
func Unrecoverable(message string, cause error) *AppCoreError {
	return Wrap(SeverityUnrecoverable, CategoryUnrecoverable, message, cause)
}

// IsAppCoreError reports whether err is (or wraps) an AppCoreError, and
// returns it via errors.As.
func IsAppCoreError(err error) (*AppCoreError, bool) {
	var e *AppCoreError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsUnrecoverable reports whether err is an AppCoreError of
// SeverityUnrecoverable — the top-level loop's exit-cleanly trigger.
func IsUnrecoverable(err error) bool {
	e, ok := IsAppCoreError(err)
	return ok && e.Severity == SeverityUnrecoverable
}

// IsRecoverable reports whether err is an AppCoreError of
// SeverityRecoverable.
func IsRecoverable(err error) bool {
	e, ok := IsAppCoreError(err)
	return ok && e.Severity == SeverityRecoverable
}
