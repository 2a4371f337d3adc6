package document

import (
	"sync"

	"github.com/SunastanS/glaphica/protocol"
)

// Document owns the layer tree root and a revision counter bumped on any
// semantic structural change (new layer, reparent, blend-mode change,
// image-source swap). The revision is distinct from any one TileImage's
// version: it tracks tree shape and binding, not pixel content.
type Document struct {
	mu       sync.RWMutex
	Root     *Layer
	revision uint64
	nextID   protocol.LayerID
}

// New constructs a Document with an empty root group layer.
func New() *Document {
	return &Document{Root: NewGroupLayer(0, "root"), nextID: 1}
}

// Revision returns the current structural revision.
func (d *Document) Revision() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.revision
}

// bumpRevision must be called with d.mu held for writing.
func (d *Document) bumpRevision() {
	d.revision++
}

// AllocateLayerID reserves and returns the next unused LayerID.
func (d *Document) AllocateLayerID() protocol.LayerID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	return id
}

// AddLeafLayer creates a new leaf layer under parentID and bumps the
// document revision. Returns the new layer's id, or false if parentID does
// not name a group layer in the tree.
func (d *Document) AddLeafLayer(parentID protocol.LayerID, name string) (protocol.LayerID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent := d.Root.Find(parentID)
	if parent == nil || parent.Kind != LayerGroup {
		return 0, false
	}
	id := d.nextID
	d.nextID++
	parent.AppendChild(NewLeafLayer(id, name))
	d.bumpRevision()
	return id, true
}

// SetBlendMode changes a layer's blend mode and bumps the revision, per
// the invariant that snapshot revision bumps whenever blend mode changes.
func (d *Document) SetBlendMode(id protocol.LayerID, blend protocol.BlendMode) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := d.Root.Find(id)
	if l == nil {
		return false
	}
	if l.Blend == blend {
		return true
	}
	l.Blend = blend
	d.bumpRevision()
	return true
}

// SetVisible toggles a layer's visibility and bumps the revision, since
// visibility participates in the rendered semantic tree.
func (d *Document) SetVisible(id protocol.LayerID, visible bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := d.Root.Find(id)
	if l == nil {
		return false
	}
	if l.Visible == visible {
		return true
	}
	l.Visible = visible
	d.bumpRevision()
	return true
}

// Layer returns the layer with the given id, or nil.
func (d *Document) Layer(id protocol.LayerID) *Layer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.Root.Find(id)
}

// Snapshot builds an immutable RenderTreeSnapshot from the current layer
// tree shape. Called by the runtime fabric's BindRenderTree path; the
// resulting snapshot's SemanticSum lets the GPU executor assert in debug
// builds that a rebind without a revision bump never changes semantics.
func (d *Document) Snapshot() protocol.RenderTreeSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	root := toNode(d.Root)
	return protocol.RenderTreeSnapshot{
		Revision:    d.revision,
		Root:        root,
		SemanticSum: protocol.SemanticHash(&root),
	}
}

func toNode(l *Layer) protocol.RenderTreeNode {
	if l.Kind == LayerLeaf {
		return protocol.RenderTreeNode{
			Kind:  protocol.NodeLeaf,
			Blend: l.Blend,
			Source: protocol.ImageSource{
				Kind:  protocol.ImageSourceDocumentLayer,
				Layer: l.ID,
			},
		}
	}
	children := make([]protocol.RenderTreeNode, 0, len(l.Children))
	for _, c := range l.Children {
		if !c.Visible {
			continue
		}
		children = append(children, toNode(c))
	}
	return protocol.RenderTreeNode{Kind: protocol.NodeGroup, Blend: l.Blend, Children: children}
}
