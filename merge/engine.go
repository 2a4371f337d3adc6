package merge

import (
	"sync"

	"github.com/SunastanS/glaphica/model"
	"github.com/SunastanS/glaphica/protocol"
)

// CommitFunc splices a finalized merge plan's output tile mapping into the
// document, bumping its revision. Kept as a function value rather than an
// interface import of package document, so merge has no document
// dependency.
type CommitFunc func(layer protocol.LayerID, mappings []TileMapping) error

// ReleaseFunc releases a set of atlas tile keys (e.g. atlas.Store.Release
// or ReleaseSetAtomic), used when stroke buffer tiles leave retention.
type ReleaseFunc func(keys []protocol.TileKey) error

// EvictionHook is invoked when a retained stroke's buffer tiles are forced
// out by atlas retention pressure, letting higher layers record the
// capability downgrade without aborting rendering.
type EvictionHook func(session protocol.StrokeSessionID)

// AckOutcome is the result of a successful ack_result call.
type AckOutcome struct {
	ReceiptID protocol.ReceiptID
	NewState  ReceiptState
}

// strokeTrack is the engine's per-session bookkeeping for the ordering
// invariants: a session must observe PointerEnd (MarkStrokeEnded) and then
// MergeBuffer before the next session is allowed to begin.
type strokeTrack struct {
	layer   protocol.LayerID
	ended   bool
	merged  bool
	retain  RetentionState
	keys    []protocol.TileKey
	token   protocol.SubmissionToken // submission token of the last merge this session submitted

	// releasePending is set when release_stroke is requested before the
	// GPU has confirmed completion of token; ProcessPendingReleases
	// performs the actual release once complete_waterline catches up.
	releasePending bool
}

// Engine is the merge lifecycle engine: the sole authority that advances
// a stroke's execution-receipt state and governs the stroke buffer
// retention window. Receipts are tracked in a linear per-id state
// machine; a second registry (strokes) tracks retention state per
// session independently of receipt lifecycle.
type Engine struct {
	mu sync.Mutex

	receipts      map[protocol.ReceiptID]*Receipt
	nextReceiptID uint64
	nextToken     protocol.SubmissionToken

	strokes       map[protocol.StrokeSessionID]*strokeTrack
	activeSession protocol.StrokeSessionID // 0 if no session awaiting MergeBuffer

	pendingNotices []protocol.CompletionNotice

	waterlines *protocol.Waterlines
	commit     CommitFunc
	release    ReleaseFunc
	evictHook  EvictionHook
}

// NewEngine constructs a merge engine. commit and release are required
// collaborators; SetRetentionEvictionHook is optional.
func NewEngine(waterlines *protocol.Waterlines, commit CommitFunc, release ReleaseFunc) *Engine {
	return &Engine{
		receipts:   make(map[protocol.ReceiptID]*Receipt),
		strokes:    make(map[protocol.StrokeSessionID]*strokeTrack),
		waterlines: waterlines,
		commit:     commit,
		release:    release,
	}
}

// SetRetentionEvictionHook installs the callback invoked when the atlas
// forces a retained stroke's tiles out under eviction pressure.
func (e *Engine) SetRetentionEvictionHook(hook EvictionHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evictHook = hook
}

// BeginStroke registers a new stroke session against layer. Rejected if an
// earlier session has not yet issued MergeBuffer: sessions must merge in
// the order they began.
func (e *Engine) BeginStroke(session protocol.StrokeSessionID, layer protocol.LayerID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeSession != 0 && e.activeSession != session {
		prev := e.strokes[e.activeSession]
		if prev == nil || !prev.merged {
			return &MergeSubmitError{
				Kind:   ErrSessionOutOfOrder,
				Detail: "BeginStroke while an earlier session has not issued MergeBuffer",
			}
		}
	}

	e.strokes[session] = &strokeTrack{layer: layer, retain: RetentionActive}
	e.activeSession = session
	return nil
}

// MarkStrokeEnded records that the session's pointer-up (PointerEnd) has
// been observed, satisfying the precondition MergeBuffer checks.
func (e *Engine) MarkStrokeEnded(session protocol.StrokeSessionID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.strokes[session]; ok {
		t.ended = true
	}
}

// MergeBuffer validates the stroke session's preconditions, builds a merge
// plan via PlanMerge, and submits it, returning the new receipt's id.
func (e *Engine) MergeBuffer(
	session protocol.StrokeSessionID,
	layer protocol.LayerID,
	blend protocol.BlendMode,
	dirtyTiles []model.TileCoord,
	strokeTileAt func(model.TileCoord) (protocol.TileKey, bool),
	base BaseLookup,
	allocOutput OutputAllocator,
) (protocol.ReceiptID, error) {
	e.mu.Lock()
	track, ok := e.strokes[session]
	if !ok {
		e.mu.Unlock()
		return 0, &MergeSubmitError{Kind: ErrStrokeNotEnded, Detail: "unknown stroke session"}
	}
	if !track.ended {
		e.mu.Unlock()
		return 0, &MergeSubmitError{Kind: ErrStrokeNotEnded, Detail: "stroke has not observed PointerEnd"}
	}
	if track.layer != layer {
		e.mu.Unlock()
		return 0, &MergeSubmitError{Kind: ErrLayerMismatch, Detail: "MergeBuffer layer does not match BeginStroke layer"}
	}
	e.mu.Unlock()

	plan, err := PlanMerge(session, layer, blend, dirtyTiles, strokeTileAt, base, allocOutput)
	if err != nil {
		return 0, err
	}

	id, err := e.Submit(plan)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	track.merged = true
	track.retain = RetentionPendingMerge
	track.keys = strokeKeysOf(plan)
	if r, ok := e.receipts[id]; ok {
		track.token = r.Token
	}
	if e.activeSession == session {
		e.activeSession = 0
	}
	e.mu.Unlock()

	return id, nil
}

// Submit allocates a receipt in Pending, inserts it into the engine's
// index, records the submission token of the current batch, and returns
// the id for later correlation.
func (e *Engine) Submit(plan MergePlan) (protocol.ReceiptID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextReceiptID++
	id := protocol.ReceiptID(e.nextReceiptID)

	e.nextToken++
	tok := e.nextToken
	if e.waterlines != nil {
		e.waterlines.Submit.Advance(tok)
	}

	e.receipts[id] = &Receipt{
		ID:      id,
		Session: plan.Session,
		Layer:   plan.Layer,
		State:   StatePending,
		Token:   tok,
		Plan:    plan,
	}
	return id, nil
}

// PushCompletionNotice is called by the GPU executor once it has confirmed
// the GPU fence enclosing a receipt's submission has passed. It only
// queues the notice; poll_completion_notices is the consumer-facing drain.
func (e *Engine) PushCompletionNotice(notice protocol.CompletionNotice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingNotices = append(e.pendingNotices, notice)
}

// PollCompletionNotices drains and returns all queued completion notices.
// This does not mutate any receipt's state — it is purely an
// observation; AckResult is the only state-advancing entry point.
func (e *Engine) PollCompletionNotices(frameID protocol.FrameID) []protocol.CompletionNotice {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pendingNotices) == 0 {
		return nil
	}
	out := e.pendingNotices
	e.pendingNotices = nil
	return out
}

// AckResult is the sole entry point that advances a receipt from Pending
// to Succeeded or Failed. A duplicate ack (receipt already non-Pending)
// fails fast with MergeAckError.
func (e *Engine) AckResult(notice protocol.CompletionNotice) (AckOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.receipts[notice.Receipt]
	if !ok {
		return AckOutcome{}, &MergeAckError{Kind: ErrUnknownReceipt, Detail: "ack for unknown receipt id"}
	}
	if r.State != StatePending {
		return AckOutcome{}, &MergeAckError{Kind: ErrIllegalState, Detail: "receipt is not pending"}
	}

	if notice.Success {
		r.State = StateSucceeded
	} else {
		r.State = StateFailed
		r.Detail = notice.Detail
		// On failure the engine must release the stroke buffer keys.
		if track, ok := e.strokes[r.Session]; ok && e.release != nil {
			_ = e.release(track.keys)
			track.retain = RetentionReleased
		}
	}

	return AckOutcome{ReceiptID: r.ID, NewState: r.State}, nil
}

// Finalize transitions a Succeeded/Failed receipt to Finalized or Aborted.
// Only on commit is the plan's output tile mapping spliced into the
// document, via the engine's CommitFunc collaborator.
func (e *Engine) Finalize(receiptID protocol.ReceiptID, commit bool) error {
	e.mu.Lock()
	r, ok := e.receipts[receiptID]
	if !ok {
		e.mu.Unlock()
		return &MergeAckError{Kind: ErrUnknownReceipt, Detail: "finalize of unknown receipt id"}
	}
	if r.State != StateSucceeded && r.State != StateFailed {
		e.mu.Unlock()
		return &MergeAckError{Kind: ErrIllegalState, Detail: "finalize requires Succeeded or Failed state"}
	}
	plan := r.Plan
	e.mu.Unlock()

	if commit && r.State == StateSucceeded {
		if e.commit != nil {
			if err := e.commit(plan.Layer, plan.Mappings); err != nil {
				return err
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if commit && r.State == StateSucceeded {
		r.State = StateFinalized
		if track, ok := e.strokes[r.Session]; ok {
			track.retain = RetentionRetained
			track.keys = strokeKeysOf(plan)
		}
	} else {
		r.State = StateAborted
	}
	return nil
}

func strokeKeysOf(plan MergePlan) []protocol.TileKey {
	keys := make([]protocol.TileKey, 0, len(plan.Mappings))
	for _, m := range plan.Mappings {
		keys = append(keys, m.StrokeTileKey)
	}
	return keys
}

// RetainStroke keeps a finalized stroke's buffer tiles allocated (Retained
// state), enabling "edit previous stroke" operations.
func (e *Engine) RetainStroke(session protocol.StrokeSessionID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.strokes[session]; ok {
		t.retain = RetentionRetained
	}
}

// ReleaseStroke releases a retained stroke's buffer tiles when called
// explicitly by higher layers; atlas eviction notices go through
// NotifyEviction, which does not call it.
// The engine's retain_id is the stroke_session_id itself, so evictions can
// be recorded as capability downgrades without aborting rendering.
//
// A tile may be released only once every submission token that referenced
// it is at or below complete_waterline. If the session's merge token has
// not yet been confirmed complete, the release is deferred: the track is
// marked releasePending and ProcessPendingReleases performs the actual
// release once the GPU catches up.
func (e *Engine) ReleaseStroke(session protocol.StrokeSessionID) error {
	e.mu.Lock()
	track, ok := e.strokes[session]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	if e.waterlines != nil && track.token > e.waterlines.Complete.Load() {
		track.releasePending = true
		e.mu.Unlock()
		return nil
	}
	keys := track.keys
	e.mu.Unlock()

	if e.release != nil && len(keys) > 0 {
		if err := e.release(keys); err != nil {
			return err
		}
	}

	e.mu.Lock()
	track.retain = RetentionReleased
	track.releasePending = false
	e.mu.Unlock()
	return nil
}

// ProcessPendingReleases performs the release of any stroke whose
// release_stroke call was deferred in ReleaseStroke because its merge
// token had not yet been confirmed complete. Called once per engine tick
// after complete_waterline advances.
func (e *Engine) ProcessPendingReleases() {
	e.mu.Lock()
	complete := protocol.SubmissionToken(0)
	if e.waterlines != nil {
		complete = e.waterlines.Complete.Load()
	}
	var ready []*strokeTrack
	for _, track := range e.strokes {
		if track.releasePending && track.token <= complete {
			ready = append(ready, track)
		}
	}
	e.mu.Unlock()

	for _, track := range ready {
		e.mu.Lock()
		keys := track.keys
		e.mu.Unlock()

		if e.release != nil && len(keys) > 0 {
			if err := e.release(keys); err != nil {
				continue
			}
		}

		e.mu.Lock()
		track.retain = RetentionReleased
		track.releasePending = false
		e.mu.Unlock()
	}
}

// NotifyEviction records that the atlas forcibly released session's
// retained buffer tiles under retention pressure, downgrading its
// retention state without touching receipt state or aborting rendering.
func (e *Engine) NotifyEviction(session protocol.StrokeSessionID) {
	e.mu.Lock()
	track, ok := e.strokes[session]
	if ok {
		track.retain = RetentionReleased
	}
	hook := e.evictHook
	e.mu.Unlock()

	if ok && hook != nil {
		hook(session)
	}
}

// ReceiptState returns a receipt's current state, for tests and debug
// inspection.
func (e *Engine) ReceiptState(id protocol.ReceiptID) (ReceiptState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.receipts[id]
	if !ok {
		return 0, false
	}
	return r.State, true
}

// RetentionStateOf returns a stroke session's current retention state.
func (e *Engine) RetentionStateOf(session protocol.StrokeSessionID) (RetentionState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.strokes[session]
	if !ok {
		return 0, false
	}
	return t.retain, true
}
