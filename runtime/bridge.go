package runtime

import (
	"sync"

	"github.com/SunastanS/glaphica/protocol"
)

// Config sets the four channels' capacities.
type Config struct {
	InputRingCapacity    int
	InputControlCapacity int
	GpuCommandCapacity   int
	GpuFeedbackCapacity  int
}

// DefaultConfig returns the spec's suggested capacities.
func DefaultConfig() Config {
	return Config{
		InputRingCapacity:    1024,
		InputControlCapacity: 256,
		GpuCommandCapacity:   1024,
		GpuFeedbackCapacity:  256,
	}
}

// Bridge owns the four SPSC channels connecting the engine thread and the
// main/GPU thread. Endpoints are Send-movable but not Sync-shared: each of
// EngineEndpoint/MainEndpoint must be claimed exactly once, by exactly one
// goroutine, at startup.
type Bridge struct {
	inputRing    *LossyRing[protocol.PointerEvent]
	inputControl *ReliableQueue[protocol.ResizeEvent]
	gpuCommand   *ReliableQueue[protocol.Command]
	gpuFeedback  *ReliableQueue[protocol.GpuFeedbackFrame]

	engineClaimed claimGuard
	mainClaimed   claimGuard
}

// NewBridge constructs a bridge with the given channel capacities.
func NewBridge(cfg Config) *Bridge {
	return &Bridge{
		inputRing:    NewLossyRing[protocol.PointerEvent](cfg.InputRingCapacity),
		inputControl: NewReliableQueue[protocol.ResizeEvent](cfg.InputControlCapacity),
		gpuCommand:   NewReliableQueue[protocol.Command](cfg.GpuCommandCapacity),
		gpuFeedback:  NewReliableQueue[protocol.GpuFeedbackFrame](cfg.GpuFeedbackCapacity),
	}
}

// EngineEndpoint is the engine thread's view of the bridge: it consumes
// pointer samples and resize control events, and produces commands while
// consuming feedback.
type EngineEndpoint struct {
	InputRing    *LossyRing[protocol.PointerEvent]
	InputControl *ReliableQueue[protocol.ResizeEvent]
	GpuCommand   *ReliableQueue[protocol.Command]
	GpuFeedback  *ReliableQueue[protocol.GpuFeedbackFrame]
}

// MainEndpoint is the main/GPU thread's view of the bridge: it consumes
// commands and produces feedback frames.
type MainEndpoint struct {
	GpuCommand  *ReliableQueue[protocol.Command]
	GpuFeedback *ReliableQueue[protocol.GpuFeedbackFrame]
}

// ClaimEngineEndpoint hands the engine-side endpoint to the caller. Panics
// if called more than once: a bridge endpoint is a single-owner handle,
// and a second claim is a construction-time programmer error, not a
// recoverable runtime condition.
func (b *Bridge) ClaimEngineEndpoint() EngineEndpoint {
	b.engineClaimed.claimOrPanic("engine endpoint already claimed")
	return EngineEndpoint{
		InputRing:    b.inputRing,
		InputControl: b.inputControl,
		GpuCommand:   b.gpuCommand,
		GpuFeedback:  b.gpuFeedback,
	}
}

// ClaimMainEndpoint hands the main-side endpoint to the caller. See
// ClaimEngineEndpoint for the single-claim discipline.
func (b *Bridge) ClaimMainEndpoint() MainEndpoint {
	b.mainClaimed.claimOrPanic("main endpoint already claimed")
	return MainEndpoint{
		GpuCommand:  b.gpuCommand,
		GpuFeedback: b.gpuFeedback,
	}
}

// InputRing exposes the lossy pointer-sample ring for the producer side
// (the windowing/input layer) to push into; it is not part of either
// endpoint claim since both the input layer and the engine need access —
// the input layer only ever calls Push, the engine only ever calls
// DrainBudget, so the single-owner-per-operation invariant still holds.
func (b *Bridge) InputRing() *LossyRing[protocol.PointerEvent] { return b.inputRing }

// claimGuard enforces "claimed exactly once": each of the two endpoints
// a Bridge hands out may be claimed by only one caller, ever.
type claimGuard struct {
	mu      sync.Mutex
	claimed bool
}

func (g *claimGuard) claimOrPanic(msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.claimed {
		panic("runtime: " + msg)
	}
	g.claimed = true
}
