// Package document holds the layer tree, per-layer tile images, and raster
// ingress that feed the runtime's render-tree snapshots.
package document

import (
	"sync"

	"github.com/SunastanS/glaphica/model"
	"github.com/SunastanS/glaphica/protocol"
)

// TileImage is a virtual image composed of tiles, each referenced by a
// TileKey. It carries a monotonically increasing version and a change log
// of touched tiles, so consumers can ask "what changed since version V".
//
// The version/dirty-bitset discipline is generalized from a single
// resource slot to a sparse map of TileCoord->TileKey with a change log
// instead of a per-slot flag, since a tile image's extent is open-ended
// and mostly sparse.
type TileImage struct {
	mu      sync.RWMutex
	tiles   map[model.TileCoord]protocol.TileKey
	version uint64
	// changeLog records, in order, the version at which each coord was
	// last touched. dirty_since(v) scans backward until it passes v.
	changeLog []change
}

type change struct {
	coord   model.TileCoord
	version uint64
}

// NewTileImage constructs an empty tile image at version 0.
func NewTileImage() *TileImage {
	return &TileImage{tiles: make(map[model.TileCoord]protocol.TileKey)}
}

// Tile returns the TileKey at coord, if any.
func (ti *TileImage) Tile(coord model.TileCoord) (protocol.TileKey, bool) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	k, ok := ti.tiles[coord]
	return k, ok
}

// Version returns the current version.
func (ti *TileImage) Version() uint64 {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return ti.version
}

// SetTile records a new (or replacement) key at coord and bumps the
// version, logging the change for dirty_since queries.
func (ti *TileImage) SetTile(coord model.TileCoord, key protocol.TileKey) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.tiles[coord] = key
	ti.version++
	ti.changeLog = append(ti.changeLog, change{coord: coord, version: ti.version})
}

// RemoveTile deletes the key at coord, if present, and bumps the version.
func (ti *TileImage) RemoveTile(coord model.TileCoord) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	if _, ok := ti.tiles[coord]; !ok {
		return
	}
	delete(ti.tiles, coord)
	ti.version++
	ti.changeLog = append(ti.changeLog, change{coord: coord, version: ti.version})
}

// DirtySince returns the set of tile coordinates touched strictly after
// previousVersion, plus the image's current version. Coordinates are
// de-duplicated: a coord touched twice since previousVersion appears once.
func (ti *TileImage) DirtySince(previousVersion uint64) (coords []model.TileCoord, current uint64) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	seen := make(map[model.TileCoord]struct{})
	for i := len(ti.changeLog) - 1; i >= 0; i-- {
		c := ti.changeLog[i]
		if c.version <= previousVersion {
			break
		}
		if _, ok := seen[c.coord]; ok {
			continue
		}
		seen[c.coord] = struct{}{}
		coords = append(coords, c.coord)
	}
	return coords, ti.version
}

// CompactChangeLog trims change-log entries older than the given version,
// bounding memory growth for long-lived images. Safe to call periodically
// once no outstanding DirtySince caller needs versions below keepFrom.
func (ti *TileImage) CompactChangeLog(keepFrom uint64) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	i := 0
	for ; i < len(ti.changeLog); i++ {
		if ti.changeLog[i].version > keepFrom {
			break
		}
	}
	ti.changeLog = ti.changeLog[i:]
}

// AllTiles returns a snapshot copy of the coord->key mapping.
func (ti *TileImage) AllTiles() map[model.TileCoord]protocol.TileKey {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	out := make(map[model.TileCoord]protocol.TileKey, len(ti.tiles))
	for k, v := range ti.tiles {
		out[k] = v
	}
	return out
}
