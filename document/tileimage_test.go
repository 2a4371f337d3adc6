package document

import (
	"testing"

	"github.com/SunastanS/glaphica/model"
	"github.com/SunastanS/glaphica/protocol"
)

func TestTileImageSetAndDirtySince(t *testing.T) {
	img := NewTileImage()
	c1 := model.TileCoord{X: 0, Y: 0}
	c2 := model.TileCoord{X: 1, Y: 0}

	img.SetTile(c1, protocol.NewTileKey(1, 1, 1))
	v1 := img.Version()

	img.SetTile(c2, protocol.NewTileKey(1, 1, 2))
	dirty, current := img.DirtySince(v1)

	if current != img.Version() {
		t.Fatalf("expected current version %d, got %d", img.Version(), current)
	}
	if len(dirty) != 1 || dirty[0] != c2 {
		t.Fatalf("expected only c2 dirty since v1, got %v", dirty)
	}

	dirtyFromZero, _ := img.DirtySince(0)
	if len(dirtyFromZero) != 2 {
		t.Fatalf("expected both coords dirty since 0, got %v", dirtyFromZero)
	}
}

func TestTileImageDirtySinceDeduplicatesRepeatedTouches(t *testing.T) {
	img := NewTileImage()
	c := model.TileCoord{X: 0, Y: 0}

	img.SetTile(c, protocol.NewTileKey(1, 1, 1))
	img.SetTile(c, protocol.NewTileKey(1, 2, 1))
	img.SetTile(c, protocol.NewTileKey(1, 3, 1))

	dirty, _ := img.DirtySince(0)
	if len(dirty) != 1 {
		t.Fatalf("expected coord touched 3 times to appear once, got %v", dirty)
	}
}

func TestTileImageRemoveTileBumpsVersionAndMarksDirty(t *testing.T) {
	img := NewTileImage()
	c := model.TileCoord{X: 2, Y: 2}
	img.SetTile(c, protocol.NewTileKey(1, 1, 1))
	v1 := img.Version()

	img.RemoveTile(c)
	if img.Version() <= v1 {
		t.Fatalf("expected version to bump on remove")
	}
	if _, ok := img.Tile(c); ok {
		t.Fatalf("expected tile to be absent after remove")
	}

	dirty, _ := img.DirtySince(v1)
	if len(dirty) != 1 || dirty[0] != c {
		t.Fatalf("expected removed coord to be dirty, got %v", dirty)
	}
}

func TestCompactChangeLogTrimsOldEntries(t *testing.T) {
	img := NewTileImage()
	for i := 0; i < 5; i++ {
		img.SetTile(model.TileCoord{X: int32(i), Y: 0}, protocol.NewTileKey(1, 1, protocol.SlotIndex(i)))
	}
	mid := img.Version() - 2

	img.CompactChangeLog(mid)
	dirty, _ := img.DirtySince(0)
	// Entries at or below mid were trimmed; DirtySince(0) now only reflects
	// what remains in the log.
	if len(dirty) != 2 {
		t.Fatalf("expected 2 remaining change-log entries, got %d: %v", len(dirty), dirty)
	}
}
