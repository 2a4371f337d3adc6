package atlas

import (
	"sync"

	"github.com/SunastanS/glaphica/protocol"
)

// opQueue is the FIFO of staged TileOp entries, drained once per GPU batch
// on the executor thread.
type opQueue struct {
	mu   sync.Mutex
	ops  []protocol.TileOp
}

func (q *opQueue) push(op protocol.TileOp) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = append(q.ops, op)
}

// drain atomically takes ownership of all currently-queued ops in FIFO
// order, leaving the queue empty for subsequent enqueues.
func (q *opQueue) drain() []protocol.TileOp {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ops) == 0 {
		return nil
	}
	out := q.ops
	q.ops = nil
	return out
}

// GpuDrainTarget is the GPU-side sink a TileAtlasStore drains staged ops
// into. Implemented by package gpu's texture-array wrapper; kept as a
// small consumer-defined interface here so atlas does not depend on the
// concrete GPU binding.
type GpuDrainTarget interface {
	// UploadTile writes bytes into the usable (non-gutter) rect of the
	// slot at (atlasLayer, slotX, slotY) and, for filterable payload
	// kinds, replicates the edge texels into the gutter band.
	UploadTile(atlasLayer uint32, slotX, slotY int, bytes []byte, filterable bool) error
	// ClearTile zeroes the full slot rect (including gutter) at
	// (atlasLayer, slotX, slotY).
	ClearTile(atlasLayer uint32, slotX, slotY int) error
}
