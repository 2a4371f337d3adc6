// Package trace is the optional replay trace sink: a line-delimited JSON
// stream, each record tagged with an OutputPhase ordinal for
// synchronization. Used for deterministic replay and tests; not required
// for the core engine to function. The runtime fabric has no hook that
// mirrors into a Writer; records are written only by callers that invoke
// its methods.
package trace

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"

	"github.com/SunastanS/glaphica/protocol"
)

// OutputPhase tags which stage of the pipeline produced a trace record,
// so a replay reader can line up pointer input against the feedback it
// eventually produced.
type OutputPhase int

const (
	PhasePointerInput OutputPhase = iota
	PhaseCommandDispatch
	PhaseFeedback
)

func (p OutputPhase) String() string {
	switch p {
	case PhasePointerInput:
		return "pointer_input"
	case PhaseCommandDispatch:
		return "command_dispatch"
	case PhaseFeedback:
		return "feedback"
	default:
		return "unknown"
	}
}

// CommandSnapshot is the JSON-safe subset of protocol.Command: every
// field except Ack, whose chan type encoding/json cannot marshal and
// which carries no meaning once replayed outside the live runtime fabric.
type CommandSnapshot struct {
	Kind           protocol.CommandKind
	Tok            protocol.SubmissionToken
	ShutdownReason string
	ResizeWidth    uint32
	ResizeHeight   uint32
	ViewTransform  [6]float64
	FrameID        protocol.FrameID
	Snapshot       *protocol.RenderTreeSnapshot
	BrushBatch     []protocol.BrushCommand
	BrushOne       protocol.BrushCommand
	MergeNotices   []protocol.CompletionNotice
	MergePlan      *protocol.MergePlanRequest
}

// NewCommandSnapshot copies the replayable fields of cmd, dropping Ack.
func NewCommandSnapshot(cmd protocol.Command) CommandSnapshot {
	return CommandSnapshot{
		Kind:           cmd.Kind,
		Tok:            cmd.Tok,
		ShutdownReason: cmd.ShutdownReason,
		ResizeWidth:    cmd.ResizeWidth,
		ResizeHeight:   cmd.ResizeHeight,
		ViewTransform:  cmd.ViewTransform,
		FrameID:        cmd.FrameID,
		Snapshot:       cmd.Snapshot,
		BrushBatch:     cmd.BrushBatch,
		BrushOne:       cmd.BrushOne,
		MergeNotices:   cmd.MergeNotices,
		MergePlan:      cmd.MergePlan,
	}
}

// Record is one line of the replay trace stream.
type Record struct {
	Phase    OutputPhase                `json:"phase"`
	Seq      uint64                     `json:"seq"`
	Pointer  *protocol.PointerEvent     `json:"pointer,omitempty"`
	Command  *CommandSnapshot           `json:"command,omitempty"`
	Feedback *protocol.GpuFeedbackFrame `json:"feedback,omitempty"`
}

// Writer serializes Records as line-delimited JSON to an underlying
// io.Writer. Safe for concurrent use by multiple producers.
type Writer struct {
	mu  sync.Mutex
	w   *bufio.Writer
	seq uint64
}

// NewWriter wraps w for line-delimited JSON trace output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WritePointer records a pointer sample at the input phase.
func (t *Writer) WritePointer(ev protocol.PointerEvent) error {
	return t.write(Record{Phase: PhasePointerInput, Pointer: &ev})
}

// WriteCommand records a dispatched command, dropping its Ack channel
// (not JSON-representable and meaningless once replayed).
func (t *Writer) WriteCommand(cmd protocol.Command) error {
	snap := NewCommandSnapshot(cmd)
	return t.write(Record{Phase: PhaseCommandDispatch, Command: &snap})
}

// WriteFeedback records a feedback frame delivered to the engine loop.
func (t *Writer) WriteFeedback(f protocol.GpuFeedbackFrame) error {
	return t.write(Record{Phase: PhaseFeedback, Feedback: &f})
}

func (t *Writer) write(r Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	r.Seq = t.seq
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := t.w.Write(b); err != nil {
		return err
	}
	if err := t.w.WriteByte('\n'); err != nil {
		return err
	}
	return t.w.Flush()
}

// Reader reads back a line-delimited JSON replay trace previously
// produced by Writer, for test replay.
type Reader struct {
	dec *json.Decoder
}

// NewReader wraps r to decode a replay trace one Record at a time.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: json.NewDecoder(r)}
}

// Next decodes the next Record, returning io.EOF once the stream is
// exhausted.
func (t *Reader) Next() (Record, error) {
	var r Record
	if err := t.dec.Decode(&r); err != nil {
		return Record{}, err
	}
	return r, nil
}
