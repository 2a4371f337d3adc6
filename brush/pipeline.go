// Package brush shapes raw pointer samples into a brush command stream
// and manages the buffer tiles those commands paint into; the engine
// thread owns the brush buffer registry.
package brush

import (
	"math"

	"github.com/SunastanS/glaphica/protocol"
)

// Dabber generates per-pixel coverage for one dab, mirroring
// gogpu-gg/painter.go's Painter.PaintSpan span-based shape but producing
// float tile content (a brush buffer's payload kind is not necessarily
// RGBA8) instead of gg.RGBA spans.
type Dabber interface {
	// PaintSpan fills dest with coverage values (0..1) for length pixels
	// starting at canvas-space tile-local (x, y).
	PaintSpan(dest []float32, x, y, length int)
}

// CircleDabber is a soft circular brush stamp: full coverage at the
// center, falling off to zero at radius, mirroring gg.SolidPainter's
// single-parameter simplicity rather than a lookup-table falloff curve.
type CircleDabber struct {
	CenterX, CenterY float64
	Radius           float64
	Opacity          float64
	// Softness is the fraction of Radius over which coverage fades from 1
	// to 0, clamped to (0, 1]. 0 is treated as 1 (fully soft).
	Softness float64
}

// PaintSpan implements Dabber.
func (d *CircleDabber) PaintSpan(dest []float32, x, y, length int) {
	softness := d.Softness
	if softness <= 0 || softness > 1 {
		softness = 1
	}
	innerRadius := d.Radius * (1 - softness)
	fy := float64(y) + 0.5
	dy := fy - d.CenterY
	for i := 0; i < length && i < len(dest); i++ {
		fx := float64(x+i) + 0.5
		dx := fx - d.CenterX
		dist := math.Hypot(dx, dy)
		var coverage float64
		switch {
		case dist <= innerRadius:
			coverage = 1
		case dist >= d.Radius:
			coverage = 0
		default:
			t := (d.Radius - dist) / (d.Radius - innerRadius)
			coverage = t * t * (3 - 2*t) // smoothstep
		}
		dest[i] = float32(coverage * d.Opacity)
	}
}

// RadiusFunc maps pointer pressure (0..1) to a dab radius in canvas units.
type RadiusFunc func(pressure float64) float64

// OpacityFunc maps pointer pressure (0..1) to a dab opacity (0..1).
type OpacityFunc func(pressure float64) float64

// Shaper turns a stream of canvas-space pointer events into a stream of
// protocol.Dab values, spacing dabs along the path by a fraction of the
// current radius rather than emitting one dab per input sample.
type Shaper struct {
	Spacing float64 // dab spacing as a fraction of radius, e.g. 0.25
	Radius  RadiusFunc
	Opacity OpacityFunc

	hasLast    bool
	lastX      float64
	lastY      float64
	carry      float64 // distance already travelled toward the next dab
}

// NewShaper constructs a Shaper. spacing must be > 0; a zero or negative
// value is treated as 0.25 (one dab per quarter-radius of travel).
func NewShaper(spacing float64, radius RadiusFunc, opacity OpacityFunc) *Shaper {
	if spacing <= 0 {
		spacing = 0.25
	}
	return &Shaper{Spacing: spacing, Radius: radius, Opacity: opacity}
}

// Feed consumes one pointer event and returns the dabs it produces. Begin
// always emits exactly one dab at the start point; Move emits zero or more
// dabs spaced along the segment since the last sample; End resets the
// shaper's path state and emits nothing.
func (s *Shaper) Feed(ev protocol.PointerEvent) []protocol.Dab {
	switch ev.Phase {
	case protocol.PointerBegin:
		s.lastX, s.lastY = ev.X, ev.Y
		s.hasLast = true
		s.carry = 0
		return []protocol.Dab{s.dabAt(ev.X, ev.Y, ev.Pressure)}

	case protocol.PointerMove:
		if !s.hasLast {
			s.lastX, s.lastY = ev.X, ev.Y
			s.hasLast = true
			return nil
		}
		dabs := s.shapeSegment(ev.X, ev.Y, ev.Pressure)
		s.lastX, s.lastY = ev.X, ev.Y
		return dabs

	case protocol.PointerEnd:
		s.hasLast = false
		s.carry = 0
		return nil

	default:
		return nil
	}
}

func (s *Shaper) shapeSegment(toX, toY, pressure float64) []protocol.Dab {
	dx, dy := toX-s.lastX, toY-s.lastY
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return nil
	}

	radius := s.Radius(pressure)
	step := s.Spacing * radius
	if step <= 0 {
		step = dist
	}

	var dabs []protocol.Dab
	travelled := step - s.carry
	for travelled <= dist {
		t := travelled / dist
		dabs = append(dabs, s.dabAt(s.lastX+dx*t, s.lastY+dy*t, pressure))
		travelled += step
	}
	s.carry = dist - (travelled - step)
	return dabs
}

func (s *Shaper) dabAt(x, y, pressure float64) protocol.Dab {
	return protocol.Dab{
		CanvasX: x,
		CanvasY: y,
		Radius:  s.Radius(pressure),
		Opacity: s.Opacity(pressure),
	}
}
