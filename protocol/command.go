package protocol

// CommandKind enumerates the runtime command fabric's payload tags. Payloads
// are owned; no borrowed data crosses the channel.
type CommandKind uint8

const (
	CmdInit CommandKind = iota
	CmdShutdown
	CmdResize
	CmdPresentFrame
	CmdBindRenderTree
	CmdEnqueueBrushCommands
	CmdEnqueueBrushCommand
	CmdPollMergeNotices
	CmdProcessMergeCompletions
	CmdAckMergeResults
	CmdEnqueuePlannedMerge
)

// Command is one tagged runtime command. Init and Resize are synchronous
// handshakes: Ack is non-nil and the sender blocks on it with a bounded
// timeout. All other commands are fire-and-forget, correlated via feedback.
type Command struct {
	Kind CommandKind
	Tok  SubmissionToken

	ShutdownReason string
	ResizeWidth    uint32
	ResizeHeight   uint32
	ViewTransform  [6]float64

	FrameID FrameID

	Snapshot *RenderTreeSnapshot

	BrushBatch []BrushCommand
	BrushOne   BrushCommand

	MergeNotices []CompletionNotice
	MergePlan    *MergePlanRequest

	// Ack, when non-nil, is a one-shot channel the initiator blocks on for
	// handshake commands (Init, Resize).
	Ack chan Receipt
}

// MergePlanRequest carries the arguments EnqueuePlannedMerge needs to hand
// to the merge engine's PlanMerge/Submit pair.
type MergePlanRequest struct {
	Session    StrokeSessionID
	LayerID    LayerID
	BlendMode  BlendMode
	DirtyTiles []TileCoordKey
}

// TileCoordKey names one destination tile coordinate within a layer, used
// by merge planning.
type TileCoordKey struct {
	X, Y int32
}

// CompletionNotice is what the GPU executor reports when it has confirmed
// the GPU fence enclosing a receipt's submission has passed. It is *not*
// itself an authoritative state mutation — only AckMergeResults advances
// receipt state.
type CompletionNotice struct {
	Receipt ReceiptID
	Success bool
	Detail  string
}

// ReceiptKind enumerates the one-per-executed-command receipt tags.
type ReceiptKind uint8

const (
	RcptInitComplete ReceiptKind = iota
	RcptShutdownAck
	RcptResized
	RcptFramePresented
	RcptRenderTreeBound
	RcptBrushCommandsEnqueued
	RcptMergeNotices
	RcptMergeCompletionsProcessed
	RcptMergeResultsAcknowledged
	RcptPlannedMergeEnqueued
)

// Receipt is one executed-command acknowledgement.
type Receipt struct {
	Kind ReceiptKind

	FrameID FrameID

	MergeNotices []CompletionNotice
	PlannedID    ReceiptID
}

// MergeKey returns the de-duplication key mailbox-merge uses to avoid
// delivering the same receipt twice across absorbed feedback frames.
func (r Receipt) MergeKey() uint64 {
	return (uint64(r.Kind) << 56) ^ uint64(r.FrameID) ^ uint64(r.PlannedID)
}

// ErrorKind enumerates runtime-fabric-level error tags.
type ErrorKind uint8

const (
	ErrInvalidCommand ErrorKind = iota
	ErrCommandFailed
	ErrChannelClosed
	ErrTimeout
	ErrPassthroughTile
	ErrPassthroughMerge
	ErrPassthroughSurface
)

// CommandError is one runtime-fabric error, optionally wrapping a
// passed-through component error.
type CommandError struct {
	Kind   ErrorKind
	Detail string
	Cause  error
}

func (e *CommandError) Error() string {
	if e.Cause != nil {
		return e.Detail + ": " + e.Cause.Error()
	}
	return e.Detail
}

func (e *CommandError) Unwrap() error { return e.Cause }

// MergeKey returns the de-duplication key mailbox-merge uses for errors.
func (e *CommandError) MergeKey() uint64 {
	h := uint64(e.Kind)
	for _, c := range e.Detail {
		h = h*31 + uint64(c)
	}
	return h
}

// GpuFeedbackFrame is the batch of progress the main loop reports back to
// the engine loop once per tick. Receipts and errors are reliable deltas;
// waterlines are absorptive (merged by max).
type GpuFeedbackFrame struct {
	PresentFrameID       FrameID
	SubmitWaterline      SubmissionToken
	ExecutedBatchWater   SubmissionToken
	CompleteWaterline    SubmissionToken
	Receipts             []Receipt
	Errors               []*CommandError
}

// MergeMailbox absorptively combines two feedback frames: present_frame_id
// and each waterline take max; receipts and errors concatenate, de-duped
// by their merge key; frame ordering within a batch is preserved.
func MergeMailbox(cur, newer GpuFeedbackFrame) GpuFeedbackFrame {
	merged := GpuFeedbackFrame{
		PresentFrameID:     FrameID(MergeMax(SubmissionToken(cur.PresentFrameID), SubmissionToken(newer.PresentFrameID))),
		SubmitWaterline:    MergeMax(cur.SubmitWaterline, newer.SubmitWaterline),
		ExecutedBatchWater: MergeMax(cur.ExecutedBatchWater, newer.ExecutedBatchWater),
		CompleteWaterline:  MergeMax(cur.CompleteWaterline, newer.CompleteWaterline),
	}

	seenR := make(map[uint64]struct{}, len(cur.Receipts)+len(newer.Receipts))
	for _, r := range cur.Receipts {
		if _, ok := seenR[r.MergeKey()]; ok {
			continue
		}
		seenR[r.MergeKey()] = struct{}{}
		merged.Receipts = append(merged.Receipts, r)
	}
	for _, r := range newer.Receipts {
		if _, ok := seenR[r.MergeKey()]; ok {
			continue
		}
		seenR[r.MergeKey()] = struct{}{}
		merged.Receipts = append(merged.Receipts, r)
	}

	seenE := make(map[uint64]struct{}, len(cur.Errors)+len(newer.Errors))
	for _, e := range cur.Errors {
		if _, ok := seenE[e.MergeKey()]; ok {
			continue
		}
		seenE[e.MergeKey()] = struct{}{}
		merged.Errors = append(merged.Errors, e)
	}
	for _, e := range newer.Errors {
		if _, ok := seenE[e.MergeKey()]; ok {
			continue
		}
		seenE[e.MergeKey()] = struct{}{}
		merged.Errors = append(merged.Errors, e)
	}

	return merged
}
