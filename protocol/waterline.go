package protocol

import "sync/atomic"

// SubmissionToken is the monotonically increasing 64-bit counter identifying
// one engine-produced command batch. Tokens flow with every receipt and
// drive waterline advancement.
type SubmissionToken uint64

// Waterline is a monotone counter tracking progress of command batches
// through one pipeline stage. It is absorptive: concurrent observers merge
// by taking the maximum.
type Waterline struct {
	v atomic.Uint64
}

// Load returns the current waterline value.
func (w *Waterline) Load() SubmissionToken {
	return SubmissionToken(w.v.Load())
}

// Advance bumps the waterline to max(current, token). Debug builds of the
// caller are expected to assert monotonicity; Advance itself never
// regresses the stored value regardless of what is passed in.
func (w *Waterline) Advance(token SubmissionToken) {
	for {
		cur := w.v.Load()
		if uint64(token) <= cur {
			return
		}
		if w.v.CompareAndSwap(cur, uint64(token)) {
			return
		}
	}
}

// MergeMax returns the larger of two waterline values, implementing the
// absorptive mailbox-merge rule: merge(f1,f2).waterline = max(f1, f2).
func MergeMax(a, b SubmissionToken) SubmissionToken {
	if a > b {
		return a
	}
	return b
}

// Waterlines bundles the three parallel monotone counters tracked by the
// runtime fabric.
type Waterlines struct {
	Submit        Waterline
	ExecutedBatch Waterline
	Complete      Waterline
}

// Snapshot returns the current value of all three waterlines.
func (w *Waterlines) Snapshot() (submit, executed, complete SubmissionToken) {
	return w.Submit.Load(), w.ExecutedBatch.Load(), w.Complete.Load()
}

// Valid reports whether the three waterlines satisfy
// complete <= executed <= submit.
func (w *Waterlines) Valid() bool {
	s, e, c := w.Snapshot()
	return c <= e && e <= s
}
