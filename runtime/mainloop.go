package runtime

import (
	"context"
	"time"

	"github.com/SunastanS/glaphica/protocol"
)

// Executor translates one runtime command into GPU work and synthesizes
// its receipt or error. Implemented by package gpuexec; kept as a
// consumer-defined interface here so runtime does not import the
// GPU-facing packages.
type Executor interface {
	Execute(cmd protocol.Command) (protocol.Receipt, *protocol.CommandError)
}

// MainLoopConfig tunes the per-tick command budget and feedback-push
// retry behavior.
type MainLoopConfig struct {
	CommandBudget       int
	IdleSleep           time.Duration
	FeedbackPushTimeout time.Duration
	PanicOnFeedbackFull bool // debug builds: protocol violation is fatal
}

// DefaultMainLoopConfig returns the main loop's suggested defaults.
func DefaultMainLoopConfig() MainLoopConfig {
	return MainLoopConfig{
		CommandBudget:       256,
		IdleSleep:           time.Millisecond,
		FeedbackPushTimeout: 5 * time.Millisecond,
	}
}

// MainLoop is the main/GPU thread's per-tick driver.
type MainLoop struct {
	endpoint   MainEndpoint
	executor   Executor
	waterlines *protocol.Waterlines
	cfg        MainLoopConfig

	// OnFeedbackQueueTimeout is invoked if the feedback push fails
	// persistently in a release build, initiating shutdown.
	OnFeedbackQueueTimeout func(*protocol.CommandError)
}

// NewMainLoop constructs a main loop bound to endpoint and executor.
func NewMainLoop(endpoint MainEndpoint, executor Executor, waterlines *protocol.Waterlines, cfg MainLoopConfig) *MainLoop {
	return &MainLoop{endpoint: endpoint, executor: executor, waterlines: waterlines, cfg: cfg}
}

// Tick runs one main-loop iteration: drain commands, execute each,
// advance waterlines, and push one feedback frame.
func (m *MainLoop) Tick(ctx context.Context) {
	cmds := m.endpoint.GpuCommand.DrainBudget(m.cfg.CommandBudget)
	if len(cmds) == 0 {
		time.Sleep(m.cfg.IdleSleep)
		return
	}

	frame := protocol.GpuFeedbackFrame{}
	var batchTok protocol.SubmissionToken

	for _, cmd := range cmds {
		if cmd.Tok > batchTok {
			batchTok = cmd.Tok
		}
		receipt, cmdErr := m.executor.Execute(cmd)
		if cmdErr != nil {
			frame.Errors = append(frame.Errors, cmdErr)
		} else {
			frame.Receipts = append(frame.Receipts, receipt)
		}
		if cmd.Kind == protocol.CmdPresentFrame {
			frame.PresentFrameID = cmd.FrameID
		}
		if cmd.Ack != nil {
			cmd.Ack <- receipt
		}
	}

	if m.waterlines != nil {
		m.waterlines.Submit.Advance(batchTok)
		m.waterlines.ExecutedBatch.Advance(batchTok)
		// Submission is synchronous end to end (Queue.Submit blocks until
		// its fence passes before Execute returns), so a batch that has
		// executed has also completed; there is no separate async
		// completion stage to wait on here.
		m.waterlines.Complete.Advance(batchTok)
	}
	frame.SubmitWaterline = m.waterlines.Submit.Load()
	frame.ExecutedBatchWater = m.waterlines.ExecutedBatch.Load()
	frame.CompleteWaterline = m.waterlines.Complete.Load()

	m.pushFeedback(ctx, frame)
}

func (m *MainLoop) pushFeedback(ctx context.Context, frame protocol.GpuFeedbackFrame) {
	if m.endpoint.GpuFeedback.TryPush(frame) {
		return
	}
	if m.cfg.PanicOnFeedbackFull {
		panic("runtime: gpu_feedback queue full: protocol violation")
	}
	if err := m.endpoint.GpuFeedback.Push(ctx, frame, m.cfg.FeedbackPushTimeout); err != nil {
		cmdErr := &protocol.CommandError{
			Kind:   protocol.ErrTimeout,
			Detail: "FeedbackQueueTimeout",
			Cause:  err,
		}
		if m.OnFeedbackQueueTimeout != nil {
			m.OnFeedbackQueueTimeout(cmdErr)
		}
	}
}
