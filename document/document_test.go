package document

import "testing"

func TestAddLeafLayerBumpsRevision(t *testing.T) {
	d := New()
	r0 := d.Revision()

	id, ok := d.AddLeafLayer(0, "background")
	if !ok {
		t.Fatalf("expected AddLeafLayer to succeed against root")
	}
	if d.Revision() <= r0 {
		t.Fatalf("expected revision to bump after adding a layer")
	}
	if l := d.Layer(id); l == nil || l.Kind != LayerLeaf {
		t.Fatalf("expected new layer to be findable and a leaf")
	}
}

func TestAddLeafLayerRejectsUnknownParent(t *testing.T) {
	d := New()
	if _, ok := d.AddLeafLayer(999, "x"); ok {
		t.Fatalf("expected AddLeafLayer against unknown parent to fail")
	}
}

func TestSetBlendModeNoOpDoesNotBumpRevision(t *testing.T) {
	d := New()
	id, _ := d.AddLeafLayer(0, "layer")
	r1 := d.Revision()

	if ok := d.SetBlendMode(id, 0); !ok {
		t.Fatalf("SetBlendMode failed")
	}
	if d.Revision() != r1 {
		t.Fatalf("expected no-op blend set (same value) not to bump revision")
	}

	if ok := d.SetBlendMode(id, 7); !ok {
		t.Fatalf("SetBlendMode failed")
	}
	if d.Revision() <= r1 {
		t.Fatalf("expected changed blend mode to bump revision")
	}
}

func TestSnapshotSemanticSumStableAcrossIdenticalTrees(t *testing.T) {
	d := New()
	d.AddLeafLayer(0, "a")
	d.AddLeafLayer(0, "b")

	snap1 := d.Snapshot()
	snap2 := d.Snapshot()

	if snap1.SemanticSum != snap2.SemanticSum {
		t.Fatalf("expected identical tree to produce identical semantic sum")
	}
	if snap1.Revision != snap2.Revision {
		t.Fatalf("expected identical revision across snapshots with no mutation between")
	}
}

func TestSnapshotSemanticSumChangesWithBlendMode(t *testing.T) {
	d := New()
	id, _ := d.AddLeafLayer(0, "a")
	before := d.Snapshot()

	d.SetBlendMode(id, 3)
	after := d.Snapshot()

	if before.SemanticSum == after.SemanticSum {
		t.Fatalf("expected semantic sum to change when blend mode changes")
	}
	if after.Revision <= before.Revision {
		t.Fatalf("expected revision to bump alongside the semantic sum change")
	}
}
