package view

import (
	"math"
	"testing"

	"github.com/tanema/gween/ease"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestIdentityTransformMapsCenterToViewportCenter(t *testing.T) {
	tr := NewTransform(800, 600)
	sx, sy := tr.CanvasToScreen(0, 0)
	if !almostEqual(sx, 400) || !almostEqual(sy, 300) {
		t.Fatalf("expected canvas origin to map to viewport center (400,300), got (%v,%v)", sx, sy)
	}
}

func TestScreenToCanvasIsInverseOfCanvasToScreen(t *testing.T) {
	tr := NewTransform(800, 600)
	tr.Pan(120, -40)
	tr.SetZoom(2.5)
	tr.SetRotation(0.4)

	cx, cy := 37.0, -58.0
	sx, sy := tr.CanvasToScreen(cx, cy)
	rcx, rcy := tr.ScreenToCanvas(sx, sy)

	if !almostEqual(rcx, cx) || !almostEqual(rcy, cy) {
		t.Fatalf("round trip through screen space did not return the original canvas point: got (%v,%v), want (%v,%v)", rcx, rcy, cx, cy)
	}
}

func TestZoomScalesDistanceFromCenter(t *testing.T) {
	tr := NewTransform(800, 600)
	tr.SetZoom(2)

	sx, sy := tr.CanvasToScreen(10, 0)
	dx := sx - 400
	dy := sy - 300
	dist := math.Hypot(dx, dy)
	if !almostEqual(dist, 20) {
		t.Fatalf("expected a canvas point at distance 10 to map to screen distance 20 at zoom 2, got %v", dist)
	}
}

func TestPanMovesCanvasOriginOnScreen(t *testing.T) {
	tr := NewTransform(800, 600)
	tr.Pan(50, 0)

	sx, sy := tr.CanvasToScreen(0, 0)
	// Panning the canvas center +50 in x means canvas x=0 now renders
	// 50 screen units to the left of viewport center.
	if !almostEqual(sx, 350) || !almostEqual(sy, 300) {
		t.Fatalf("expected panned origin at (350,300), got (%v,%v)", sx, sy)
	}
}

func TestSetZoomRejectsNonPositive(t *testing.T) {
	tr := NewTransform(800, 600)
	tr.SetZoom(3)
	tr.SetZoom(0)
	tr.SetZoom(-1)
	if tr.Zoom != 3 {
		t.Fatalf("expected non-positive SetZoom calls to be rejected, zoom is %v", tr.Zoom)
	}
}

func TestRecenterToAnimatesTowardTarget(t *testing.T) {
	tr := NewTransform(800, 600)
	tr.RecenterTo(100, 50, 1.0, ease.Linear)

	changed := tr.Update(0.5)
	if !changed {
		t.Fatalf("expected Update to report a change mid-animation")
	}
	if tr.CanvasX == 0 && tr.CanvasY == 0 {
		t.Fatalf("expected canvas position to have moved partway toward the target")
	}

	// Drive it to completion.
	for i := 0; i < 10; i++ {
		tr.Update(1.0)
	}
	if !almostEqual(tr.CanvasX, 100) || !almostEqual(tr.CanvasY, 50) {
		t.Fatalf("expected the recenter animation to converge on (100,50), got (%v,%v)", tr.CanvasX, tr.CanvasY)
	}
}

func TestUpdateWithNoRecenterInFlightIsNoop(t *testing.T) {
	tr := NewTransform(800, 600)
	if tr.Update(0.1) {
		t.Fatalf("expected Update with no in-flight recenter to report no change")
	}
}
