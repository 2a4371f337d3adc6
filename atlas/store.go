package atlas

import (
	"fmt"
	"sort"
	"sync"

	"github.com/SunastanS/glaphica/model"
	"github.com/SunastanS/glaphica/protocol"
)

// EvictionReason distinguishes why a key was released.
type EvictionReason uint8

const (
	// EvictionMergeInitiated means the merge engine itself released the
	// key (e.g. ReleaseStroke) — no GC notice is needed for this case.
	EvictionMergeInitiated EvictionReason = iota
	// EvictionRetentionPressure means the atlas released the key under
	// external retention pressure (e.g. to satisfy an Allocate after
	// AtlasFull). The merge engine must be told so it can transition any
	// receipt still depending on the key.
	EvictionRetentionPressure
)

// EvictionNotice is pushed whenever a key is released due to external
// retention pressure, so the merge engine can transition dependent
// receipts.
type EvictionNotice struct {
	Key    protocol.TileKey
	Reason EvictionReason
}

// Store is a sharded CPU index plus GPU texture-array-backed pages for one
// payload kind (RGBA8, R32-float, or R8-uint). Allocation and release
// mutate CPU-only index shards; GPU drain consumes the staged op queue.
// Organized as N independently-locked shards x M pages, with each page
// owning its slots' generation counters.
type Store struct {
	Payload model.PayloadKind
	backend protocol.BackendID

	shards [shardCount]*shard

	pagesMu     sync.RWMutex
	pages       []*page
	slotsPerRow int
	slotsPerPage int

	ops opQueue

	gc GpuDrainTarget

	evictMu   sync.Mutex
	evictions []EvictionNotice
}

// NewStore constructs a Store for one payload kind. slotsPerRow and
// slotsPerPage determine each atlas page's grid geometry; the store starts
// with one page and grows by allocating additional pages on demand.
func NewStore(backend protocol.BackendID, payload model.PayloadKind, slotsPerRow, slotsPerPage int, gc GpuDrainTarget) *Store {
	s := &Store{
		Payload:      payload,
		backend:      backend,
		slotsPerRow:  slotsPerRow,
		slotsPerPage: slotsPerPage,
		gc:           gc,
	}
	for i := range s.shards {
		s.shards[i] = newShard()
	}
	s.pages = append(s.pages, newPage(0, slotsPerPage, slotsPerRow))
	return s
}

// GrowPage appends a new atlas page (texture-array layer), expanding total
// capacity. It is the caller's responsibility to have actually created the
// backing GPU texture-array layer before relying on slots from it.
func (s *Store) GrowPage() uint32 {
	s.pagesMu.Lock()
	defer s.pagesMu.Unlock()
	layer := uint32(len(s.pages))
	s.pages = append(s.pages, newPage(layer, s.slotsPerPage, s.slotsPerRow))
	return layer
}

// Allocate picks any page with a free slot, pops it, and constructs a
// fresh TileKey inserted into the owning shard's index.
func (s *Store) Allocate() (protocol.TileKey, error) {
	s.pagesMu.RLock()
	pages := s.pages
	s.pagesMu.RUnlock()

	for _, p := range pages {
		slot, gen, ok := p.tryAlloc()
		if !ok {
			continue
		}
		key := protocol.NewTileKey(s.backend, gen, packSlot(p.layer, slot))
		sh := s.shards[shardIndex(key)]
		sh.insert(key.Slot(), record{pageIdx: p.layer, slot: slot, gen: gen})
		return key, nil
	}
	return 0, ErrAtlasFull
}

// packSlot folds an atlas layer and in-page slot index into one 32-bit
// SlotIndex for the TileKey.
func packSlot(layer uint32, slot protocol.SlotIndex) protocol.SlotIndex {
	return protocol.SlotIndex((layer << 20) | (uint32(slot) & 0xFFFFF))
}

func unpackSlot(packed protocol.SlotIndex) (layer uint32, slot protocol.SlotIndex) {
	v := uint32(packed)
	return v >> 20, protocol.SlotIndex(v & 0xFFFFF)
}

// Resolve looks up the shard's slot record and validates the key's own
// generation against the owning page's current value. A slot that was
// never allocated has no record at all (ErrNotFound); a slot that was
// allocated but has since been released or reallocated still has a
// record, so a stale key's generation mismatch is observable
// (ErrGenerationMismatch) instead of collapsing into ErrNotFound.
func (s *Store) Resolve(key protocol.TileKey) (protocol.TileAddress, error) {
	sh := s.shards[shardIndex(key)]
	r, ok := sh.get(key.Slot())
	if !ok {
		return protocol.TileAddress{}, ErrNotFound
	}

	s.pagesMu.RLock()
	p := s.pageAt(r.pageIdx)
	s.pagesMu.RUnlock()
	if p == nil {
		return protocol.TileAddress{}, ErrNotFound
	}

	cur := p.currentGeneration(r.slot)
	if cur != key.Gen() {
		return protocol.TileAddress{}, ErrGenerationMismatch
	}

	return protocol.TileAddress{
		AtlasLayer:  r.pageIdx,
		TileIndex:   uint32(r.slot),
		ObservedGen: cur,
	}, nil
}

// pageAt must be called with s.pagesMu held (read or write).
func (s *Store) pageAt(idx uint32) *page {
	if int(idx) >= len(s.pages) {
		return nil
	}
	return s.pages[idx]
}

// IsAllocated reports whether key currently resolves to a live slot.
func (s *Store) IsAllocated(key protocol.TileKey) bool {
	_, err := s.Resolve(key)
	return err == nil
}

// Release bumps the slot's generation, returns it to its page's free
// list, and enqueues a Clear op so the reused slot starts zeroed. The
// slot's shard entry is left in place (not deleted) so that a stale
// key's later Resolve observes ErrGenerationMismatch rather than
// ErrNotFound. Idempotent: a second Release of the same key finds the
// page generation has already moved past it and returns false.
func (s *Store) Release(key protocol.TileKey) bool {
	return s.release(key, EvictionMergeInitiated)
}

func (s *Store) release(key protocol.TileKey, reason EvictionReason) bool {
	sh := s.shards[shardIndex(key)]
	r, ok := sh.get(key.Slot())
	if !ok {
		return false
	}

	s.pagesMu.RLock()
	p := s.pageAt(r.pageIdx)
	s.pagesMu.RUnlock()
	if p == nil {
		return false
	}
	if p.currentGeneration(r.slot) != key.Gen() {
		return false
	}

	p.release(r.slot)

	s.ops.push(protocol.TileOp{
		Kind:         protocol.TileOpClear,
		AtlasLayer:   r.pageIdx,
		TileIndex:    uint32(r.slot),
		GenAtEnqueue: key.Gen() + 1, // the generation the slot now carries
		Payload:      s.Payload,
	})

	if reason == EvictionRetentionPressure {
		s.evictMu.Lock()
		s.evictions = append(s.evictions, EvictionNotice{Key: key, Reason: reason})
		s.evictMu.Unlock()
	}

	return true
}

// ReleaseUnderPressure releases a key on behalf of external retention
// pressure (e.g. an eviction policy satisfying an AtlasFull retry),
// publishing an EvictionNotice the merge engine can consume.
func (s *Store) ReleaseUnderPressure(key protocol.TileKey) bool {
	return s.release(key, EvictionRetentionPressure)
}

// DrainEvictionNotices returns and clears all pending eviction notices.
func (s *Store) DrainEvictionNotices() []EvictionNotice {
	s.evictMu.Lock()
	defer s.evictMu.Unlock()
	if len(s.evictions) == 0 {
		return nil
	}
	out := s.evictions
	s.evictions = nil
	return out
}

// ReleaseSetAtomic performs a deterministic multi-shard release: shard ids
// of all keys are collected, sorted ascending, and locks acquired in that
// order to eliminate ABBA deadlocks. Either all keys release or none do.
func (s *Store) ReleaseSetAtomic(keys []protocol.TileKey) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	type keyShard struct {
		key   protocol.TileKey
		shard uint32
	}
	ks := make([]keyShard, len(keys))
	shardSet := map[uint32]struct{}{}
	for i, k := range keys {
		si := shardIndex(k)
		ks[i] = keyShard{key: k, shard: si}
		shardSet[si] = struct{}{}
	}

	sortedShards := make([]uint32, 0, len(shardSet))
	for si := range shardSet {
		sortedShards = append(sortedShards, si)
	}
	sort.Slice(sortedShards, func(i, j int) bool { return sortedShards[i] < sortedShards[j] })

	for _, si := range sortedShards {
		s.shards[si].mu.Lock()
	}
	defer func() {
		for _, si := range sortedShards {
			s.shards[si].mu.Unlock()
		}
	}()

	// First pass: verify every key is present and resolvable, without
	// mutating anything, so a mid-operation invariant failure aborts with
	// observable state unchanged.
	records := make([]record, len(ks))
	for i, kv := range ks {
		r, ok := s.shards[kv.shard].entries[kv.key.Slot()]
		if !ok {
			return 0, &TileSetError{Op: "release_set_atomic", Cause: fmt.Errorf("key %s not found", kv.key)}
		}
		s.pagesMu.RLock()
		p := s.pageAt(r.pageIdx)
		s.pagesMu.RUnlock()
		if p == nil || p.currentGeneration(r.slot) != kv.key.Gen() {
			return 0, &TileSetError{Op: "release_set_atomic", Cause: fmt.Errorf("key %s generation mismatch", kv.key)}
		}
		records[i] = r
	}

	// Second pass: commit, locks already held for every touched shard. The
	// shard entry is left in place (not deleted), same as single-key
	// Release, so a stale key's later Resolve still finds a record to
	// compare generations against.
	for i, kv := range ks {
		r := records[i]
		s.pagesMu.RLock()
		p := s.pageAt(r.pageIdx)
		s.pagesMu.RUnlock()
		if p != nil {
			p.release(r.slot)
		}
		s.ops.push(protocol.TileOp{
			Kind:         protocol.TileOpClear,
			AtlasLayer:   r.pageIdx,
			TileIndex:    uint32(r.slot),
			GenAtEnqueue: kv.key.Gen() + 1,
			Payload:      s.Payload,
		})
	}

	return len(ks), nil
}

// EnqueueUpload validates and resolves key, then appends an Upload TileOp
// carrying the generation observed at enqueue time.
func (s *Store) EnqueueUpload(key protocol.TileKey, bytes []byte) error {
	addr, err := s.Resolve(key)
	if err != nil {
		return err
	}
	s.ops.push(protocol.TileOp{
		Kind:         protocol.TileOpUpload,
		AtlasLayer:   addr.AtlasLayer,
		TileIndex:    addr.TileIndex,
		GenAtEnqueue: addr.ObservedGen,
		Bytes:        bytes,
		Payload:      s.Payload,
	})
	return nil
}

// EnqueueClear validates and resolves key, then appends a Clear TileOp.
func (s *Store) EnqueueClear(key protocol.TileKey) error {
	addr, err := s.Resolve(key)
	if err != nil {
		return err
	}
	s.ops.push(protocol.TileOp{
		Kind:         protocol.TileOpClear,
		AtlasLayer:   addr.AtlasLayer,
		TileIndex:    addr.TileIndex,
		GenAtEnqueue: addr.ObservedGen,
		Payload:      s.Payload,
	})
	return nil
}

// DrainAndExecute pops all staged ops in FIFO order and executes survivors
// against the GPU drain target. An op is skipped if the slot's current
// generation no longer matches the generation recorded at enqueue time —
// the slot was released (and possibly reallocated) in the meantime.
func (s *Store) DrainAndExecute() (int, error) {
	ops := s.ops.drain()
	executed := 0

	s.pagesMu.RLock()
	pages := s.pages
	s.pagesMu.RUnlock()

	for _, op := range ops {
		if int(op.AtlasLayer) >= len(pages) {
			continue
		}
		p := pages[op.AtlasLayer]
		slot := protocol.SlotIndex(op.TileIndex)
		if p.currentGeneration(slot) != op.GenAtEnqueue {
			continue // stale: slot was released/reallocated since enqueue
		}

		x, y := p.rect(slot)
		switch op.Kind {
		case protocol.TileOpUpload:
			if err := s.gc.UploadTile(op.AtlasLayer, x, y, op.Bytes, op.Payload.Filterable()); err != nil {
				return executed, &GpuDrainError{Cause: err}
			}
		case protocol.TileOpClear, protocol.TileOpRelease:
			if err := s.gc.ClearTile(op.AtlasLayer, x, y); err != nil {
				return executed, &GpuDrainError{Cause: err}
			}
		}
		executed++
	}
	return executed, nil
}
