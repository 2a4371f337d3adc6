package merge

import "github.com/SunastanS/glaphica/protocol"

// ReceiptState enumerates a stroke execution receipt's lifecycle. A
// receipt never transitions backwards.
type ReceiptState uint8

const (
	StatePending ReceiptState = iota
	StateSucceeded
	StateFailed
	StateFinalized
	StateAborted
	StateBufferReleased
)

func (s ReceiptState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateFinalized:
		return "finalized"
	case StateAborted:
		return "aborted"
	case StateBufferReleased:
		return "buffer_released"
	default:
		return "unknown"
	}
}

// terminal reports whether no further ack/finalize transition is legal
// from this state (retention release is still legal from Finalized/Aborted).
func (s ReceiptState) terminal() bool {
	return s == StateFinalized || s == StateAborted || s == StateBufferReleased
}

// RetentionState enumerates the BrushBufferTileRegistry lifecycle for one
// stroke session's buffer tiles.
type RetentionState uint8

const (
	RetentionActive RetentionState = iota
	RetentionPendingMerge
	RetentionRetained
	RetentionReleased
)

// Receipt is the engine's bookkeeping record for one in-flight merge
// operation.
type Receipt struct {
	ID      protocol.ReceiptID
	Session protocol.StrokeSessionID
	Layer   protocol.LayerID

	State ReceiptState
	Token protocol.SubmissionToken

	Plan MergePlan

	// Detail carries the CompletionNotice detail string on failure, for
	// diagnostics.
	Detail string
}
