package scheduler

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSchedulerIdleByDefault(t *testing.T) {
	s := NewFrameScheduler(200*time.Millisecond, 8, 256)
	if s.IsActive(epoch) {
		t.Fatalf("expected scheduler to start idle")
	}
	if s.Mode(epoch) != RedrawOnInvalidation {
		t.Fatalf("expected on_invalidation mode at start, got %v", s.Mode(epoch))
	}
	if got := s.TickBudget(epoch); got != 8 {
		t.Fatalf("expected idle tick budget 8, got %d", got)
	}
}

func TestSchedulerActiveWithinWindow(t *testing.T) {
	s := NewFrameScheduler(200*time.Millisecond, 8, 256)
	s.NotifyStrokeActivity(epoch)

	later := epoch.Add(100 * time.Millisecond)
	if !s.IsActive(later) {
		t.Fatalf("expected active within the activity window")
	}
	if s.Mode(later) != RedrawContinuous {
		t.Fatalf("expected continuous mode while active, got %v", s.Mode(later))
	}
	if got := s.TickBudget(later); got != 256 {
		t.Fatalf("expected active tick budget 256, got %d", got)
	}
}

func TestSchedulerGoesIdleAfterWindowElapses(t *testing.T) {
	s := NewFrameScheduler(200*time.Millisecond, 8, 256)
	s.NotifyStrokeActivity(epoch)

	later := epoch.Add(500 * time.Millisecond)
	if s.IsActive(later) {
		t.Fatalf("expected inactive once the activity window has elapsed")
	}
}

func TestSchedulerShouldRedrawAlwaysTrueWhileActive(t *testing.T) {
	s := NewFrameScheduler(200*time.Millisecond, 8, 256)
	s.NotifyStrokeActivity(epoch)

	for i := 0; i < 3; i++ {
		at := epoch.Add(time.Duration(i) * 10 * time.Millisecond)
		if !s.ShouldRedraw(at) {
			t.Fatalf("expected ShouldRedraw true while active, iteration %d", i)
		}
	}
}

func TestSchedulerShouldRedrawOnlyOncePerInvalidateWhenIdle(t *testing.T) {
	s := NewFrameScheduler(200*time.Millisecond, 8, 256)

	if s.ShouldRedraw(epoch) {
		t.Fatalf("expected no redraw while idle with no invalidation")
	}

	s.Invalidate()
	if !s.ShouldRedraw(epoch) {
		t.Fatalf("expected redraw immediately after Invalidate")
	}
	if s.ShouldRedraw(epoch) {
		t.Fatalf("expected invalidation to be consumed after one ShouldRedraw")
	}
}
