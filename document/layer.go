package document

import (
	"github.com/SunastanS/glaphica/protocol"
)

// LayerKind distinguishes a group (container) layer from a leaf (content)
// layer in the document's layer tree.
type LayerKind uint8

const (
	LayerGroup LayerKind = iota
	LayerLeaf
)

// Layer is one node of the document's layer tree. Groups carry children;
// leaves own a TileImage.
type Layer struct {
	ID       protocol.LayerID
	Name     string
	Kind     LayerKind
	Blend    protocol.BlendMode
	Visible  bool
	Children []*Layer // valid when Kind == LayerGroup
	Image    *TileImage // valid when Kind == LayerLeaf
}

// NewGroupLayer constructs an empty group layer.
func NewGroupLayer(id protocol.LayerID, name string) *Layer {
	return &Layer{ID: id, Name: name, Kind: LayerGroup, Visible: true}
}

// NewLeafLayer constructs a leaf layer backed by a fresh TileImage.
func NewLeafLayer(id protocol.LayerID, name string) *Layer {
	return &Layer{ID: id, Name: name, Kind: LayerLeaf, Visible: true, Image: NewTileImage()}
}

// Find performs a depth-first search for the layer with the given id,
// returning nil if absent.
func (l *Layer) Find(id protocol.LayerID) *Layer {
	if l.ID == id {
		return l
	}
	for _, c := range l.Children {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// AppendChild adds a child to a group layer. Panics if l is not a group —
// building the tree with a leaf parent is a programmer error.
func (l *Layer) AppendChild(child *Layer) {
	if l.Kind != LayerGroup {
		panic("document: AppendChild on non-group layer")
	}
	l.Children = append(l.Children, child)
}
