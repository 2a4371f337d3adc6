package brush

import (
	"testing"

	"github.com/SunastanS/glaphica/atlas"
	"github.com/SunastanS/glaphica/model"
)

type fakeDrain struct{}

func (fakeDrain) UploadTile(atlasLayer uint32, slotX, slotY int, bytes []byte, filterable bool) error {
	return nil
}
func (fakeDrain) ClearTile(atlasLayer uint32, slotX, slotY int) error { return nil }

func newTestStore() *atlas.Store {
	return atlas.NewStore(1, model.PayloadKindRGBA8, 4, 16, fakeDrain{})
}

func TestRegistryTileForAllocatesOnce(t *testing.T) {
	r := NewRegistry(newTestStore())
	r.Begin(1)

	k1, err := r.TileFor(1, model.TileCoord{X: 0, Y: 0})
	if err != nil {
		t.Fatalf("TileFor: %v", err)
	}
	k2, err := r.TileFor(1, model.TileCoord{X: 0, Y: 0})
	if err != nil {
		t.Fatalf("TileFor second call: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("expected the same coordinate to reuse its allocated key, got %v vs %v", k1, k2)
	}

	state, ok := r.StateOf(1, model.TileCoord{X: 0, Y: 0})
	if !ok || state != BufferActive {
		t.Fatalf("expected BufferActive, got %v (ok=%v)", state, ok)
	}
}

func TestRegistryDistinctCoordsGetDistinctKeys(t *testing.T) {
	r := NewRegistry(newTestStore())
	r.Begin(1)

	k1, _ := r.TileFor(1, model.TileCoord{X: 0, Y: 0})
	k2, _ := r.TileFor(1, model.TileCoord{X: 1, Y: 0})
	if k1 == k2 {
		t.Fatalf("expected distinct coordinates to get distinct tile keys")
	}
}

func TestRegistryStrokeTileAtResolvesAllocated(t *testing.T) {
	r := NewRegistry(newTestStore())
	r.Begin(1)
	key, _ := r.TileFor(1, model.TileCoord{X: 2, Y: 3})

	lookup := r.StrokeTileAt(1)
	got, ok := lookup(model.TileCoord{X: 2, Y: 3})
	if !ok || got != key {
		t.Fatalf("expected StrokeTileAt to resolve the allocated key, got %v (ok=%v)", got, ok)
	}

	_, ok = lookup(model.TileCoord{X: 9, Y: 9})
	if ok {
		t.Fatalf("expected a miss for a coordinate never touched")
	}
}

func TestRegistryMarkPendingMergeTransitionsState(t *testing.T) {
	r := NewRegistry(newTestStore())
	r.Begin(1)
	r.TileFor(1, model.TileCoord{X: 0, Y: 0})

	r.MarkPendingMerge(1)

	state, ok := r.StateOf(1, model.TileCoord{X: 0, Y: 0})
	if !ok || state != BufferPendingMerge {
		t.Fatalf("expected BufferPendingMerge, got %v (ok=%v)", state, ok)
	}
}

func TestRegistryReleaseReturnsTilesAndForgetsSession(t *testing.T) {
	store := newTestStore()
	r := NewRegistry(store)
	r.Begin(1)
	key, _ := r.TileFor(1, model.TileCoord{X: 0, Y: 0})

	r.Release(1)

	if store.IsAllocated(key) {
		t.Fatalf("expected the tile key to be released back to the atlas")
	}
	if _, ok := r.StateOf(1, model.TileCoord{X: 0, Y: 0}); ok {
		t.Fatalf("expected the session to be forgotten after Release")
	}
}

func TestRegistryReleaseOfUnknownSessionIsNoop(t *testing.T) {
	r := NewRegistry(newTestStore())
	r.Release(99) // must not panic
}

func TestRegistryRetainTransitionsAllTiles(t *testing.T) {
	r := NewRegistry(newTestStore())
	r.Begin(1)
	r.TileFor(1, model.TileCoord{X: 0, Y: 0})
	r.TileFor(1, model.TileCoord{X: 1, Y: 0})

	r.Retain(1)

	for _, c := range []model.TileCoord{{X: 0, Y: 0}, {X: 1, Y: 0}} {
		state, ok := r.StateOf(1, c)
		if !ok || state != BufferRetained {
			t.Fatalf("expected BufferRetained at %+v, got %v (ok=%v)", c, state, ok)
		}
	}
}

func TestRegistryAtlasFullPropagatesError(t *testing.T) {
	store := atlas.NewStore(1, model.PayloadKindRGBA8, 1, 1, fakeDrain{})
	r := NewRegistry(store)
	r.Begin(1)

	if _, err := r.TileFor(1, model.TileCoord{X: 0, Y: 0}); err != nil {
		t.Fatalf("first allocation should succeed: %v", err)
	}
	if _, err := r.TileFor(1, model.TileCoord{X: 1, Y: 0}); err == nil {
		t.Fatalf("expected an error once the single-slot atlas is exhausted")
	}
}
