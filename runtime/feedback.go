package runtime

import "github.com/SunastanS/glaphica/protocol"

// ReceiptHandlers dispatches one feedback frame's receipts to their
// per-kind handlers. Each field is optional; a nil handler silently
// ignores receipts of that kind.
type ReceiptHandlers struct {
	OnInitComplete               func()
	OnShutdownAck                func()
	OnResized                    func()
	OnFramePresented             func(protocol.FrameID)
	OnRenderTreeBound            func()
	OnBrushCommandsEnqueued      func()
	OnMergeNotices               func([]protocol.CompletionNotice)
	OnMergeCompletionsProcessed  func()
	OnMergeResultsAcknowledged   func()
	OnPlannedMergeEnqueued       func(protocol.ReceiptID)

	// OnWaterlineAdvance, when set, is called once per applied frame after
	// the engine-side waterlines are updated and before receipts are
	// dispatched. It is the hook the merge engine's retention window uses
	// to release any stroke whose release was deferred pending GPU
	// completion of its submission token.
	OnWaterlineAdvance func()
}

// Dispatch routes each receipt in the frame to its handler.
func (h ReceiptHandlers) Dispatch(frame protocol.GpuFeedbackFrame) {
	for _, r := range frame.Receipts {
		switch r.Kind {
		case protocol.RcptInitComplete:
			if h.OnInitComplete != nil {
				h.OnInitComplete()
			}
		case protocol.RcptShutdownAck:
			if h.OnShutdownAck != nil {
				h.OnShutdownAck()
			}
		case protocol.RcptResized:
			if h.OnResized != nil {
				h.OnResized()
			}
		case protocol.RcptFramePresented:
			if h.OnFramePresented != nil {
				h.OnFramePresented(r.FrameID)
			}
		case protocol.RcptRenderTreeBound:
			if h.OnRenderTreeBound != nil {
				h.OnRenderTreeBound()
			}
		case protocol.RcptBrushCommandsEnqueued:
			if h.OnBrushCommandsEnqueued != nil {
				h.OnBrushCommandsEnqueued()
			}
		case protocol.RcptMergeNotices:
			if h.OnMergeNotices != nil {
				h.OnMergeNotices(r.MergeNotices)
			}
		case protocol.RcptMergeCompletionsProcessed:
			if h.OnMergeCompletionsProcessed != nil {
				h.OnMergeCompletionsProcessed()
			}
		case protocol.RcptMergeResultsAcknowledged:
			if h.OnMergeResultsAcknowledged != nil {
				h.OnMergeResultsAcknowledged()
			}
		case protocol.RcptPlannedMergeEnqueued:
			if h.OnPlannedMergeEnqueued != nil {
				h.OnPlannedMergeEnqueued(r.PlannedID)
			}
		}
	}
}

// ErrorHandler is called once per error in an applied feedback frame.
type ErrorHandler func(*protocol.CommandError)

// Mailbox accumulates feedback frames absorptively across ticks: each
// drained frame is folded into the mailbox via protocol.MergeMailbox, and
// Take consumes (resets) the accumulated frame once per engine tick.
type Mailbox struct {
	current protocol.GpuFeedbackFrame
	dirty   bool
}

// Absorb folds newer into the mailbox's current frame.
func (m *Mailbox) Absorb(newer protocol.GpuFeedbackFrame) {
	m.current = protocol.MergeMailbox(m.current, newer)
	m.dirty = true
}

// Take returns the accumulated frame and resets the mailbox, reporting
// false if nothing was absorbed since the last Take.
func (m *Mailbox) Take() (protocol.GpuFeedbackFrame, bool) {
	if !m.dirty {
		return protocol.GpuFeedbackFrame{}, false
	}
	frame := m.current
	m.current = protocol.GpuFeedbackFrame{}
	m.dirty = false
	return frame, true
}
