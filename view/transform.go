// Package view is the engine-local pan/zoom/rotate view transform: the
// affine mapping between screen space (pointer/window coordinates) and
// canvas space (document coordinates), and its inverse. The engine
// receives canvas-space samples only — the driver collaborator applies
// ScreenToCanvas before handing pointer samples to the brush execution
// pipeline.
package view

import (
	"math"
	"sync"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

var identityTransform = [6]float64{1, 0, 0, 1, 0, 0}

// recenterAnim holds an in-flight animated recenter: one gween.Tween per
// axis.
type recenterAnim struct {
	tweenX, tweenY *gween.Tween
	doneX, doneY   bool
}

// Transform is the pan/zoom/rotate view state for one canvas: computes the
// view matrix and its screen/canvas conversions. There is no scene graph
// or node culling here — only one canvas.
type Transform struct {
	mu sync.Mutex

	// CanvasX, CanvasY is the canvas-space point the viewport is centered
	// on.
	CanvasX, CanvasY float64
	// Zoom is the scale factor; 1.0 is no zoom.
	Zoom float64
	// Rotation is clockwise radians.
	Rotation float64

	viewportW, viewportH float64

	matrix    [6]float64
	invMatrix [6]float64
	dirty     bool

	recenter *recenterAnim
}

// NewTransform constructs a Transform centered at the canvas origin with
// no zoom or rotation, for a viewport of the given screen-space size.
func NewTransform(viewportW, viewportH float64) *Transform {
	return &Transform{
		Zoom:      1,
		viewportW: viewportW,
		viewportH: viewportH,
		dirty:     true,
	}
}

// SetViewport updates the screen-space viewport size, e.g. on window
// resize, and marks the cached matrices stale.
func (t *Transform) SetViewport(width, height float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.viewportW, t.viewportH = width, height
	t.dirty = true
}

// Pan translates the canvas-space center point by (dx, dy) in canvas units.
func (t *Transform) Pan(dx, dy float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CanvasX += dx
	t.CanvasY += dy
	t.dirty = true
}

// SetZoom sets the absolute zoom factor. Values <= 0 are rejected silently
// (zoom is left unchanged), since a non-positive zoom is not invertible.
func (t *Transform) SetZoom(zoom float64) {
	if zoom <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Zoom = zoom
	t.dirty = true
}

// SetRotation sets the absolute rotation in radians.
func (t *Transform) SetRotation(radians float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Rotation = radians
	t.dirty = true
}

// Matrix returns the current canvas-to-screen affine matrix in the
// [a, c, b, d, tx, ty] layout protocol.Command.ViewTransform shares,
// recomputing it if any field has changed since the last call.
func (t *Transform) Matrix() [6]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recompute()
	return t.matrix
}

// Inverse returns the current screen-to-canvas affine matrix.
func (t *Transform) Inverse() [6]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recompute()
	return t.invMatrix
}

func (t *Transform) recompute() {
	if !t.dirty {
		return
	}
	t.dirty = false

	cx := t.viewportW / 2
	cy := t.viewportH / 2

	cos := math.Cos(-t.Rotation)
	sin := math.Sin(-t.Rotation)
	z := t.Zoom

	a := z * cos
	b := -z * sin
	c := z * sin
	d := z * cos
	tx := cx + z*(-cos*t.CanvasX+sin*t.CanvasY)
	ty := cy + z*(-sin*t.CanvasX-cos*t.CanvasY)

	t.matrix = [6]float64{a, c, b, d, tx, ty}
	t.invMatrix = invertAffine(t.matrix)
}

// CanvasToScreen converts a canvas-space point to screen space.
func (t *Transform) CanvasToScreen(cx, cy float64) (sx, sy float64) {
	return transformPoint(t.Matrix(), cx, cy)
}

// ScreenToCanvas converts a screen-space point to canvas space — the
// inverse the driver collaborator must apply before brush execution ever
// sees a pointer sample.
func (t *Transform) ScreenToCanvas(sx, sy float64) (cx, cy float64) {
	return transformPoint(t.Inverse(), sx, sy)
}

// RecenterTo animates CanvasX/CanvasY to (x, y) over duration seconds.
// Call Update once per frame to advance it.
func (t *Transform) RecenterTo(x, y float64, duration float32, easeFn ease.TweenFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recenter = &recenterAnim{
		tweenX: gween.New(float32(t.CanvasX), float32(x), duration, easeFn),
		tweenY: gween.New(float32(t.CanvasY), float32(y), duration, easeFn),
	}
}

// Update advances any in-flight RecenterTo animation by dt seconds,
// reporting whether the view changed (and so a redraw should be
// requested). A no-op returning false when no recenter is in flight.
func (t *Transform) Update(dt float32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recenter == nil {
		return false
	}

	changed := false
	if !t.recenter.doneX {
		val, done := t.recenter.tweenX.Update(dt)
		t.CanvasX = float64(val)
		t.recenter.doneX = done
		changed = true
	}
	if !t.recenter.doneY {
		val, done := t.recenter.tweenY.Update(dt)
		t.CanvasY = float64(val)
		t.recenter.doneY = done
		changed = true
	}
	if changed {
		t.dirty = true
	}
	if t.recenter.doneX && t.recenter.doneY {
		t.recenter = nil
	}
	return changed
}

func invertAffine(m [6]float64) [6]float64 {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return identityTransform
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return [6]float64{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

func transformPoint(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}
