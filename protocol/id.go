// Package protocol defines the wire-level types shared across the tile
// atlas, merge engine, and runtime fabric: tile keys, waterlines, render
// operations, and the runtime command/receipt/error enumerations.
package protocol

import "fmt"

// BackendID identifies the pixel-format family a TileKey's slot belongs to.
type BackendID uint8

// Generation is the per-slot monotone counter bumped on release; encoded
// into a TileKey so that stale keys are detectable after slot reuse.
type Generation uint32

// SlotIndex selects a (layer, tile_index) pair within one atlas store.
type SlotIndex uint32

// TileKey is an opaque 64-bit handle: backend_id (8 bits) | generation (24
// bits) | slot_index (32 bits). Equality is exact; a key whose generation
// no longer matches the slot's current generation must be rejected on
// resolve.
//
// Bit layout (low to high): slot_index[31:0] | generation[23:0] |
// backend_id[7:0].
type TileKey uint64

const (
	genMask  = 0x00FFFFFF
	genBits  = 24
	slotBits = 32
)

// NewTileKey packs a backend id, generation, and slot index into a TileKey.
// The generation is masked to 24 bits and the backend id to 8 bits.
func NewTileKey(backend BackendID, gen Generation, slot SlotIndex) TileKey {
	g := uint64(gen) & genMask
	return TileKey(uint64(slot) | (g << slotBits) | (uint64(backend) << (slotBits + genBits)))
}

// Unpack extracts the backend id, generation, and slot index from a TileKey.
func (k TileKey) Unpack() (backend BackendID, gen Generation, slot SlotIndex) {
	slot = SlotIndex(uint64(k) & 0xFFFFFFFF)
	gen = Generation((uint64(k) >> slotBits) & genMask)
	backend = BackendID(uint64(k) >> (slotBits + genBits))
	return
}

// Backend returns the backend id component.
func (k TileKey) Backend() BackendID {
	b, _, _ := k.Unpack()
	return b
}

// Gen returns the generation component.
func (k TileKey) Gen() Generation {
	_, g, _ := k.Unpack()
	return g
}

// Slot returns the slot index component.
func (k TileKey) Slot() SlotIndex {
	_, _, s := k.Unpack()
	return s
}

// IsZero reports whether the key is the zero value (never a valid
// allocation, since generations start at 1).
func (k TileKey) IsZero() bool { return k == 0 }

// String returns a debug representation of the key.
func (k TileKey) String() string {
	b, g, s := k.Unpack()
	return fmt.Sprintf("TileKey(backend=%d,gen=%d,slot=%d)", b, g, s)
}

// TileAddress is the resolved physical location of a TileKey: an atlas
// layer plus a tile index within that layer, together with the generation
// observed at resolve time. Valid only within one frame unless guarded by
// a submission token.
type TileAddress struct {
	AtlasLayer      uint32
	TileIndex       uint32
	ObservedGen     Generation
}

// StrokeSessionID identifies one continuous pointer-down-to-up stroke.
type StrokeSessionID uint64

// ReceiptID identifies one in-flight GPU merge operation tracked by the
// merge lifecycle engine.
type ReceiptID uint64

// LayerID identifies a leaf layer within a Document's layer tree.
type LayerID uint64

// FrameID identifies one presented frame.
type FrameID uint64
