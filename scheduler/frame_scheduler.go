// Package scheduler decides how many frames to request per unit time
// based on brush activity, and hands the engine loop a tick budget so a
// burst of input samples cannot saturate the command channel.
package scheduler

import (
	"sync"
	"time"
)

// RedrawMode is the scheduler's current redraw request policy.
type RedrawMode uint8

const (
	// RedrawOnInvalidation means redraws are requested only when
	// Invalidate is explicitly called — the idle policy.
	RedrawOnInvalidation RedrawMode = iota
	// RedrawContinuous means a redraw is requested every tick — the
	// policy while any stroke is active.
	RedrawContinuous
)

func (m RedrawMode) String() string {
	if m == RedrawContinuous {
		return "continuous"
	}
	return "on_invalidation"
}

// FrameScheduler maintains a brush-activity window and derives a redraw
// policy and per-tick command budget from it. All methods take the
// current time explicitly rather than calling time.Now() internally, so
// the activity window logic is deterministic and testable without
// sleeping.
type FrameScheduler struct {
	mu sync.Mutex

	activityWindow time.Duration
	lastActivity   time.Time
	hasActivity    bool
	invalidated    bool

	idleTickBudget   int
	activeTickBudget int
}

// NewFrameScheduler constructs a scheduler. activityWindow is how long
// after the last brush sample the scheduler still considers a stroke
// active; idleTickBudget/activeTickBudget bound the number of runtime
// commands the engine loop may drain in one tick under each policy.
func NewFrameScheduler(activityWindow time.Duration, idleTickBudget, activeTickBudget int) *FrameScheduler {
	return &FrameScheduler{
		activityWindow:   activityWindow,
		idleTickBudget:   idleTickBudget,
		activeTickBudget: activeTickBudget,
	}
}

// NotifyStrokeActivity records that a brush sample was processed at now,
// extending the activity window from this point.
func (s *FrameScheduler) NotifyStrokeActivity(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
	s.hasActivity = true
}

// Invalidate requests exactly one redraw the next time ShouldRedraw is
// consulted while idle. A no-op while a stroke is active, since continuous
// redraws already cover it.
func (s *FrameScheduler) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = true
}

// IsActive reports whether a stroke is within the activity window as of
// now.
func (s *FrameScheduler) IsActive(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isActiveLocked(now)
}

func (s *FrameScheduler) isActiveLocked(now time.Time) bool {
	return s.hasActivity && now.Sub(s.lastActivity) < s.activityWindow
}

// Mode returns the scheduler's current redraw request policy as of now.
func (s *FrameScheduler) Mode(now time.Time) RedrawMode {
	if s.IsActive(now) {
		return RedrawContinuous
	}
	return RedrawOnInvalidation
}

// ShouldRedraw reports whether the engine loop should request a redraw
// this tick: always true while a stroke is active, otherwise true exactly
// once per Invalidate call. Calling ShouldRedraw consumes any pending
// invalidation.
func (s *FrameScheduler) ShouldRedraw(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isActiveLocked(now) {
		s.invalidated = false
		return true
	}
	if s.invalidated {
		s.invalidated = false
		return true
	}
	return false
}

// TickBudget returns the maximum number of runtime commands the engine
// loop may drain this tick: the larger active budget while a stroke is
// active, the smaller idle budget otherwise — preventing an idle tick
// from processing an unbounded backlog in one pass.
func (s *FrameScheduler) TickBudget(now time.Time) int {
	if s.IsActive(now) {
		return s.activeTickBudget
	}
	return s.idleTickBudget
}
