package protocol

import "github.com/SunastanS/glaphica/model"

// TileOpKind enumerates the staged GPU operations the atlas store can
// queue against a slot.
type TileOpKind uint8

const (
	// TileOpUpload writes CPU-provided bytes into a slot's texture rect.
	TileOpUpload TileOpKind = iota
	// TileOpClear zeroes a slot's texture rect.
	TileOpClear
	// TileOpRelease marks a slot's GPU-side content as no longer needed.
	TileOpRelease
)

// TileOp is one staged atlas operation, carrying the generation observed
// at enqueue time so a stale op can be skipped if the slot was reused
// before the op drained.
type TileOp struct {
	Kind           TileOpKind
	AtlasLayer     uint32
	TileIndex      uint32
	GenAtEnqueue   Generation
	Bytes          []byte // only meaningful for TileOpUpload
	Payload        model.PayloadKind
}

// RenderOpKind enumerates the kinds of compute/render work the brush
// execution pipeline and frame planner can request of the GPU executor.
type RenderOpKind uint8

const (
	RenderOpDabCompute RenderOpKind = iota
	RenderOpCompositeTile
	RenderOpPresent
)

// RenderOp is one unit of GPU work: a brush dab compute dispatch or a
// composite draw instance. The shader body it ultimately invokes is
// opaque to this package.
type RenderOp struct {
	Kind        RenderOpKind
	SourceKey   TileKey
	DestKey     TileKey
	InstanceIdx int
}

// BrushCommand carries one shaped segment of pointer samples, ready for
// the GPU executor to turn into dab compute dispatches. Canvas-space only
// — the screen-to-canvas inverse has already been applied by the driver
// collaborator before this type is constructed.
type BrushCommand struct {
	Session   StrokeSessionID
	LayerID   LayerID
	Dabs      []Dab
	BlendMode BlendMode
}

// Dab is one brush stamp: canvas-space center, radius, and pressure-derived
// opacity. The exact brush math (shape, falloff) is out of scope; this is
// the parameter set handed to the opaque compute pipeline.
type Dab struct {
	CanvasX, CanvasY float64
	Radius           float64
	Opacity          float64
}

// BlendMode is an opaque handle to a composite blend function; the core
// treats it as a value to route, not to interpret.
type BlendMode uint32

// PointerPhase enumerates the inbound pointer event lifecycle.
type PointerPhase uint8

const (
	PointerBegin PointerPhase = iota
	PointerMove
	PointerEnd
)

// PointerEvent is one canvas-space pointer sample, already translated by
// the driver collaborator's screen_to_canvas inverse; the engine receives
// canvas-space samples only.
type PointerEvent struct {
	Session  StrokeSessionID
	X, Y     float64
	Pressure float64
	Phase    PointerPhase
}

// ResizeEvent is a window resize notification, translated into a Resize
// command by the runtime fabric.
type ResizeEvent struct {
	Width, Height uint32
}
