package atlas

import (
	"sync"

	"github.com/SunastanS/glaphica/model"
	"github.com/SunastanS/glaphica/protocol"
)

// page is one texture-array layer: a grid of fixed-size slots, each large
// enough for one tile plus gutter, plus a free list and per-slot generation
// counters. Generations live on the page (not the shard) so Resolve needs
// one shard lookup plus one cross-reference to the page. release bumps a
// slot's generation before returning it to the free list, which is what
// invalidates any outstanding key to that slot.
type page struct {
	mu          sync.Mutex
	slotsPerRow int
	slotCount   int
	generations []protocol.Generation
	free        []protocol.SlotIndex
	dirty       []bool // per-slot: has content changed since last GPU drain
	layer       uint32
}

func newPage(layer uint32, slotCount, slotsPerRow int) *page {
	p := &page{
		slotsPerRow: slotsPerRow,
		slotCount:   slotCount,
		generations: make([]protocol.Generation, slotCount),
		free:        make([]protocol.SlotIndex, slotCount),
		dirty:       make([]bool, slotCount),
		layer:       layer,
	}
	// Generation 0 is reserved so the zero TileKey is never valid; first
	// allocation of any slot observes generation 1.
	for i := range p.generations {
		p.generations[i] = 0
	}
	for i := 0; i < slotCount; i++ {
		p.free[i] = protocol.SlotIndex(slotCount - 1 - i)
	}
	return p
}

// tryAlloc pops a free slot, if any, bumps its generation to the next live
// value, and returns the slot index and the generation it now carries.
func (p *page) tryAlloc() (protocol.SlotIndex, protocol.Generation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return 0, 0, false
	}
	slot := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.generations[slot]++
	p.dirty[slot] = true
	return slot, p.generations[slot], true
}

// currentGeneration returns the slot's live generation.
func (p *page) currentGeneration(slot protocol.SlotIndex) protocol.Generation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generations[slot]
}

// release bumps the slot's generation (invalidating any outstanding key)
// and returns it to the free list.
func (p *page) release(slot protocol.SlotIndex) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generations[slot]++
	p.free = append(p.free, slot)
}

// rect returns the slot's pixel rectangle within the page texture.
func (p *page) rect(slot protocol.SlotIndex) (x, y int) {
	return model.SlotRect(int(slot), p.slotsPerRow)
}

func (p *page) hasFree() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free) > 0
}
