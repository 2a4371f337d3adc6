package merge

import (
	"testing"

	"github.com/SunastanS/glaphica/model"
	"github.com/SunastanS/glaphica/protocol"
)

func strokeTileMap(m map[model.TileCoord]protocol.TileKey) func(model.TileCoord) (protocol.TileKey, bool) {
	return func(c model.TileCoord) (protocol.TileKey, bool) {
		k, ok := m[c]
		return k, ok
	}
}

func noBase(model.TileCoord) (protocol.TileKey, bool) { return 0, false }

func sequentialAllocator() OutputAllocator {
	var n uint32
	return func() (protocol.TileKey, error) {
		n++
		return protocol.NewTileKey(1, 1, protocol.SlotIndex(n)), nil
	}
}

func TestPlanMergeHappyPath(t *testing.T) {
	c1 := model.TileCoord{X: 0, Y: 0}
	c2 := model.TileCoord{X: 1, Y: 0}
	strokeKeys := map[model.TileCoord]protocol.TileKey{
		c1: protocol.NewTileKey(1, 1, 10),
		c2: protocol.NewTileKey(1, 1, 11),
	}

	plan, err := PlanMerge(1, 5, 0, []model.TileCoord{c1, c2}, strokeTileMap(strokeKeys), noBase, sequentialAllocator())
	if err != nil {
		t.Fatalf("PlanMerge: %v", err)
	}
	if len(plan.Mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(plan.Mappings))
	}

	outputs := map[protocol.TileKey]bool{}
	for _, m := range plan.Mappings {
		if outputs[m.OutputTileKey] {
			t.Fatalf("duplicate output key in plan")
		}
		outputs[m.OutputTileKey] = true
	}
}

func TestPlanMergeRejectsDuplicateDirtyCoord(t *testing.T) {
	c1 := model.TileCoord{X: 0, Y: 0}
	strokeKeys := map[model.TileCoord]protocol.TileKey{c1: protocol.NewTileKey(1, 1, 10)}

	_, err := PlanMerge(1, 5, 0, []model.TileCoord{c1, c1}, strokeTileMap(strokeKeys), noBase, sequentialAllocator())
	if err == nil {
		t.Fatalf("expected error for duplicate dirty coordinate")
	}
	tme, ok := err.(*TileMergeError)
	if !ok || tme.Kind != ErrDuplicateOutput {
		t.Fatalf("expected ErrDuplicateOutput, got %v", err)
	}
}

func TestPlanMergeRejectsMissingStrokeTile(t *testing.T) {
	c1 := model.TileCoord{X: 0, Y: 0}
	_, err := PlanMerge(1, 5, 0, []model.TileCoord{c1}, strokeTileMap(nil), noBase, sequentialAllocator())
	if err == nil {
		t.Fatalf("expected error when dirty coord has no stroke tile")
	}
}

func TestPlanMergeRejectsStrokeKeyReusedAcrossCoords(t *testing.T) {
	c1 := model.TileCoord{X: 0, Y: 0}
	c2 := model.TileCoord{X: 1, Y: 0}
	sharedKey := protocol.NewTileKey(1, 1, 99)
	strokeKeys := map[model.TileCoord]protocol.TileKey{c1: sharedKey, c2: sharedKey}

	_, err := PlanMerge(1, 5, 0, []model.TileCoord{c1, c2}, strokeTileMap(strokeKeys), noBase, sequentialAllocator())
	if err == nil {
		t.Fatalf("expected error when a stroke tile key maps to two coordinates")
	}
}
