package brush

import (
	"fmt"
	"sync"

	"github.com/SunastanS/glaphica/atlas"
	"github.com/SunastanS/glaphica/model"
	"github.com/SunastanS/glaphica/protocol"
)

// BufferState is one brush buffer tile's lifecycle stage, engine-side
// bookkeeping distinct from merge.Engine's per-receipt RetentionState:
// this tracks tiles *before* a merge plan ever exists, from first paint to
// the moment MergeBuffer hands the session's keys off to the merge engine.
type BufferState uint8

const (
	// BufferActive means the stroke is still being painted; the tile may
	// still receive more dab writes.
	BufferActive BufferState = iota
	// BufferPendingMerge means MergeBuffer has been called for the owning
	// session and the tile's key has been handed to a merge plan; the
	// registry still holds it so a late eviction notice can be routed.
	BufferPendingMerge
	// BufferRetained means the session was kept alive after its merge
	// (RetainStroke) so a later "edit previous stroke" can reuse it.
	BufferRetained
	// BufferReleased means the tile has been returned to the atlas and
	// must not be referenced again.
	BufferReleased
)

func (s BufferState) String() string {
	switch s {
	case BufferActive:
		return "active"
	case BufferPendingMerge:
		return "pending_merge"
	case BufferRetained:
		return "retained"
	default:
		return "released"
	}
}

// tileEntry is one brush buffer tile's registry record.
type tileEntry struct {
	key   protocol.TileKey
	state BufferState
}

// Registry allocates and tracks the transient stroke buffer tiles a brush
// session paints into, keyed by (session, tile coordinate). It backs the
// strokeTileAt collaborator merge.PlanMerge/MergeBuffer call to resolve a
// dirty coordinate to its stroke buffer tile key.
//
// It uses atlas.Store as its underlying slot allocator and adds the
// per-session coordinate index Store itself has no notion of (Store only
// knows keys, not which stroke or coordinate a key belongs to).
type Registry struct {
	mu      sync.Mutex
	store   *atlas.Store
	entries map[protocol.StrokeSessionID]map[model.TileCoord]*tileEntry
}

// NewRegistry constructs a buffer registry allocating from store.
func NewRegistry(store *atlas.Store) *Registry {
	return &Registry{
		store:   store,
		entries: make(map[protocol.StrokeSessionID]map[model.TileCoord]*tileEntry),
	}
}

// Begin starts tracking a new stroke session, discarding any stale entries
// left over from a prior session reusing the same id (should not happen in
// practice since session ids are not reused, but keeps Begin idempotent).
func (r *Registry) Begin(session protocol.StrokeSessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[session] = make(map[model.TileCoord]*tileEntry)
}

// TileFor returns the buffer tile key backing coord for session, allocating
// a fresh atlas slot on first touch. Returns an error if the atlas has no
// free slot (ErrAtlasFull propagates from the underlying Store.Allocate).
func (r *Registry) TileFor(session protocol.StrokeSessionID, coord model.TileCoord) (protocol.TileKey, error) {
	r.mu.Lock()
	tiles, ok := r.entries[session]
	if !ok {
		tiles = make(map[model.TileCoord]*tileEntry)
		r.entries[session] = tiles
	}
	entry, ok := tiles[coord]
	r.mu.Unlock()

	if ok {
		return entry.key, nil
	}

	key, err := r.store.Allocate()
	if err != nil {
		return 0, fmt.Errorf("brush: allocate buffer tile for session %d at %+v: %w", session, coord, err)
	}

	r.mu.Lock()
	tiles[coord] = &tileEntry{key: key, state: BufferActive}
	r.mu.Unlock()
	return key, nil
}

// StrokeTileAt adapts the registry into merge.BaseLookup/strokeTileAt's
// function-value shape: the collaborator PlanMerge calls to resolve a
// dirty coordinate to its stroke buffer tile.
func (r *Registry) StrokeTileAt(session protocol.StrokeSessionID) func(model.TileCoord) (protocol.TileKey, bool) {
	return func(coord model.TileCoord) (protocol.TileKey, bool) {
		r.mu.Lock()
		defer r.mu.Unlock()
		tiles, ok := r.entries[session]
		if !ok {
			return 0, false
		}
		entry, ok := tiles[coord]
		if !ok {
			return 0, false
		}
		return entry.key, true
	}
}

// MarkPendingMerge transitions every tile of session to BufferPendingMerge,
// called once MergeBuffer has handed the session's keys to a merge plan.
func (r *Registry) MarkPendingMerge(session protocol.StrokeSessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries[session] {
		if e.state == BufferActive {
			e.state = BufferPendingMerge
		}
	}
}

// Retain transitions every tile of session to BufferRetained, mirroring
// merge.Engine.RetainStroke for the registry's own bookkeeping.
func (r *Registry) Retain(session protocol.StrokeSessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries[session] {
		e.state = BufferRetained
	}
}

// Release returns every live tile of session to the atlas and removes the
// session from the registry. Safe to call on an already-released or
// unknown session (no-op).
func (r *Registry) Release(session protocol.StrokeSessionID) {
	r.mu.Lock()
	tiles, ok := r.entries[session]
	delete(r.entries, session)
	r.mu.Unlock()
	if !ok {
		return
	}

	keys := make([]protocol.TileKey, 0, len(tiles))
	for _, e := range tiles {
		if e.state != BufferReleased {
			keys = append(keys, e.key)
		}
	}
	if len(keys) > 0 {
		r.store.ReleaseSetAtomic(keys)
	}
}

// StateOf reports a tile's current BufferState, for tests and diagnostics.
func (r *Registry) StateOf(session protocol.StrokeSessionID, coord model.TileCoord) (BufferState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tiles, ok := r.entries[session]
	if !ok {
		return 0, false
	}
	e, ok := tiles[coord]
	if !ok {
		return 0, false
	}
	return e.state, true
}
