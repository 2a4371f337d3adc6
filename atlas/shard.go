package atlas

import (
	"sync"

	"github.com/SunastanS/glaphica/protocol"
)

// record is the shard-resident entry for one live TileKey: which page and
// slot it resolves to, and the generation stored at allocation time.
type record struct {
	pageIdx uint32
	slot    protocol.SlotIndex
	gen     protocol.Generation
}

// shard is one fine-grained-locked bucket of the index, keyed by a tile's
// packed slot index rather than its full TileKey. Locks must never be
// held across a GPU call or across a command boundary.
//
// Keying by slot instead of the full key is what lets a stale key (one
// whose embedded generation has since been superseded by release or
// reallocation) still find a present record to compare generations
// against: a release never removes the slot's entry, it only lets the
// owning page's generation counter move past it. Resolve compares the
// requested key's own generation against the page's live value, so a
// slot that was never allocated (no entry) reports ErrNotFound while a
// slot that was allocated and has since moved on reports
// ErrGenerationMismatch.
type shard struct {
	mu      sync.Mutex
	entries map[protocol.SlotIndex]record
}

func newShard() *shard {
	return &shard{entries: make(map[protocol.SlotIndex]record)}
}

func (s *shard) insert(slot protocol.SlotIndex, r record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[slot] = r
}

func (s *shard) get(slot protocol.SlotIndex) (record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.entries[slot]
	return r, ok
}

// shardCount is the fixed power-of-two number of shards the key index is
// split into.
const shardCount = 16

// shardIndex hashes a TileKey's slot field to select its owning shard.
func shardIndex(key protocol.TileKey) uint32 {
	slot := uint32(key.Slot())
	// Fibonacci hashing keeps adjacent slot indices from piling into the
	// same shard.
	h := slot * 2654435761
	return (h >> 16) % shardCount
}
