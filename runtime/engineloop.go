package runtime

import (
	"context"
	"time"

	"github.com/SunastanS/glaphica/protocol"
)

// BusinessLogic is the engine-side per-tick work: process drained pointer
// samples and control events into zero or more outbound commands. The
// caller is solely responsible for brush-sample processing and merge
// planning; EngineLoop only drives the channel plumbing around it.
type BusinessLogic interface {
	// Process consumes this tick's drained input and returns commands to
	// enqueue, in order. Returning fewer than capacity is fine; the loop
	// stops enqueuing (not draining) once a push would block.
	Process(samples []protocol.PointerEvent, resizes []protocol.ResizeEvent) []protocol.Command
}

// EngineLoopConfig tunes per-tick drain budgets.
type EngineLoopConfig struct {
	InputSampleBudget int
	ControlBudget     int
	CommandPushTimeout time.Duration
}

// DefaultEngineLoopConfig returns the engine loop's suggested defaults.
func DefaultEngineLoopConfig() EngineLoopConfig {
	return EngineLoopConfig{
		InputSampleBudget:  256,
		ControlBudget:      64,
		CommandPushTimeout: 1 * time.Millisecond,
	}
}

// feedbackDrainCap bounds one tick's feedback drain; the gpu_feedback
// queue's own capacity already bounds how much can be pending.
const feedbackDrainCap = 4096

// EngineLoop is the engine thread's per-tick driver.
type EngineLoop struct {
	endpoint   EngineEndpoint
	logic      BusinessLogic
	waterlines *protocol.Waterlines
	cfg        EngineLoopConfig
	mailbox    Mailbox
	handlers   ReceiptHandlers

	// OnError is called once per error in an applied feedback frame.
	OnError ErrorHandler
}

// NewEngineLoop constructs an engine loop bound to endpoint and logic.
func NewEngineLoop(endpoint EngineEndpoint, logic BusinessLogic, waterlines *protocol.Waterlines, cfg EngineLoopConfig, handlers ReceiptHandlers) *EngineLoop {
	return &EngineLoop{endpoint: endpoint, logic: logic, waterlines: waterlines, cfg: cfg, handlers: handlers}
}

// Tick runs one engine-loop iteration: drain input, run business logic,
// push commands (stopping on push-full), drain and absorptively merge
// feedback, then apply the merged frame once.
func (l *EngineLoop) Tick(ctx context.Context) {
	samples := l.endpoint.InputRing.DrainBudget(l.cfg.InputSampleBudget)
	resizes := l.endpoint.InputControl.DrainBudget(l.cfg.ControlBudget)

	commands := l.logic.Process(samples, resizes)
	for _, cmd := range commands {
		if !l.endpoint.GpuCommand.TryPush(cmd) {
			// Push-full: stop the inner loop to avoid unbounded command
			// flow rather than blocking the engine thread indefinitely.
			break
		}
	}

	// Drain the feedback channel fully but non-blockingly: whatever is
	// available this tick gets absorbed; nothing is awaited.
	for _, frame := range l.endpoint.GpuFeedback.DrainBudget(feedbackDrainCap) {
		l.mailbox.Absorb(frame)
	}

	if merged, ok := l.mailbox.Take(); ok {
		l.applyFrame(merged)
	}
}

func (l *EngineLoop) applyFrame(frame protocol.GpuFeedbackFrame) {
	if l.waterlines != nil {
		l.waterlines.Submit.Advance(frame.SubmitWaterline)
		l.waterlines.ExecutedBatch.Advance(frame.ExecutedBatchWater)
		l.waterlines.Complete.Advance(frame.CompleteWaterline)
	}
	if l.handlers.OnWaterlineAdvance != nil {
		l.handlers.OnWaterlineAdvance()
	}
	l.handlers.Dispatch(frame)
	if l.OnError != nil {
		for _, e := range frame.Errors {
			l.OnError(e)
		}
	}
}
