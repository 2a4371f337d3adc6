package gpuexec

import (
	"fmt"
	"sync"

	"github.com/SunastanS/glaphica/model"
	"github.com/SunastanS/glaphica/protocol"
)

// NodeMode is the frame planner's per-node composite decision.
type NodeMode uint8

const (
	// ModeSkip means the node's subtree has no dirt; reuse last frame's
	// composite output unchanged.
	ModeSkip NodeMode = iota
	// ModePartial means only the listed dirty tiles need re-compositing;
	// everything else in the cached composite stays valid.
	ModePartial
	// ModeFull means the cached composite is invalid (cache miss, or a
	// semantic-hash mismatch) and must be rebuilt from scratch.
	ModeFull
)

func (m NodeMode) String() string {
	switch m {
	case ModeSkip:
		return "skip"
	case ModePartial:
		return "partial"
	default:
		return "full"
	}
}

// CompositeNodePlan describes one render-tree node's work for this frame.
type CompositeNodePlan struct {
	Mode              NodeMode
	DirtyTiles        []model.TileCoord
	DrawInstanceBase  int
	DrawInstanceCount int
	Children          []CompositeNodePlan
}

// TileInstance is one emitted draw instance: a tile quad sampling a
// texture-array slot, composited at its document-space origin.
type TileInstance struct {
	DocOriginX, DocOriginY int32
	AtlasLayer             uint32
	TileIndex              uint32
}

// cacheKey identifies one node's cached composite for staleness detection:
// (layer_id_or_group_id, image_source_kind) plus the snapshot's semantic
// hash. Group nodes have no natural id in protocol.RenderTreeNode, so
// their id is a structural path hash computed during the walk instead.
type cacheKey struct {
	id           uint64
	sourceKind   protocol.ImageSourceKind
	semanticHash uint64
}

const groupSourceKind protocol.ImageSourceKind = 0xFF

type cacheEntry struct {
	semanticHash uint64
}

// DirtyLookup reports the dirty tile set for one leaf's image source,
// together with whether the source should be treated as fully dirty
// (brush buffer leaves are always fully dirty for their session).
type DirtyLookup func(source protocol.ImageSource) (dirty []model.TileCoord, fullyDirty bool)

// TileResolver resolves one leaf's tile coordinate to the physical atlas
// address backing it. A resolver miss mid-draw is fatal: the
// dirty-propagation contract guarantees the resolver has the tile.
type TileResolver func(source protocol.ImageSource, coord model.TileCoord) (protocol.TileAddress, bool)

// Planner builds a CompositeNodePlan tree from a bound render-tree
// snapshot each frame, caching per-node results so unchanged subtrees are
// skipped.
type Planner struct {
	mu    sync.Mutex
	cache map[cacheKey]cacheEntry

	// ExpandGroupDirty optionally widens a group's dirty tile set beyond
	// the union of its children's (e.g. a blur group bleeds dirt into
	// neighboring tiles). Nil means no expansion.
	ExpandGroupDirty func(tiles []model.TileCoord) []model.TileCoord
}

// NewPlanner constructs an empty frame planner.
func NewPlanner() *Planner {
	return &Planner{cache: make(map[cacheKey]cacheEntry)}
}

// Build walks snapshot bottom-up, producing a CompositeNodePlan tree and
// the flat list of tile draw instances for this frame. arena reserves the
// draw-instance buffer range backing DrawInstanceBase/Count.
func (p *Planner) Build(snapshot *protocol.RenderTreeSnapshot, dirty DirtyLookup, resolve TileResolver, arena *Arena) (CompositeNodePlan, []TileInstance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var instances []TileInstance
	plan, err := p.buildNode(&snapshot.Root, "root", dirty, resolve, &instances)
	if err != nil {
		return CompositeNodePlan{}, nil, err
	}

	if arena != nil && len(instances) > 0 {
		const instanceSize = 16 // DocOriginX,Y int32 + AtlasLayer,TileIndex uint32
		base, err := arena.Alloc(uint64(len(instances)*instanceSize), "tile-instances")
		if err != nil {
			return CompositeNodePlan{}, nil, fmt.Errorf("gpuexec: draw instance arena alloc: %w", err)
		}
		plan.DrawInstanceBase = int(base) / instanceSize
		plan.DrawInstanceCount = len(instances)
	}

	return plan, instances, nil
}

func (p *Planner) buildNode(node *protocol.RenderTreeNode, path string, dirty DirtyLookup, resolve TileResolver, instances *[]TileInstance) (CompositeNodePlan, error) {
	if node.Kind == protocol.NodeLeaf {
		return p.buildLeaf(node, path, dirty, resolve, instances)
	}

	var childPlans []CompositeNodePlan
	var unionDirty []model.TileCoord
	anyDirty := false

	for i := range node.Children {
		childPath := fmt.Sprintf("%s/%d", path, i)
		childPlan, err := p.buildNode(&node.Children[i], childPath, dirty, resolve, instances)
		if err != nil {
			return CompositeNodePlan{}, err
		}
		childPlans = append(childPlans, childPlan)
		if childPlan.Mode != ModeSkip {
			anyDirty = true
			unionDirty = append(unionDirty, childPlan.DirtyTiles...)
		}
	}

	if p.ExpandGroupDirty != nil && len(unionDirty) > 0 {
		unionDirty = p.ExpandGroupDirty(unionDirty)
	}

	key := cacheKey{id: pathHash(path), sourceKind: groupSourceKind, semanticHash: protocol.SemanticHash(node)}
	mode := p.resolveMode(key, anyDirty)

	return CompositeNodePlan{Mode: mode, DirtyTiles: unionDirty, Children: childPlans}, nil
}

func (p *Planner) buildLeaf(node *protocol.RenderTreeNode, path string, dirty DirtyLookup, resolve TileResolver, instances *[]TileInstance) (CompositeNodePlan, error) {
	dirtyTiles, fullyDirty := dirty(node.Source)

	var id uint64
	switch node.Source.Kind {
	case protocol.ImageSourceDocumentLayer:
		id = uint64(node.Source.Layer)
	case protocol.ImageSourceBrushBuffer:
		id = uint64(node.Source.Session)
	}
	key := cacheKey{id: id, sourceKind: node.Source.Kind, semanticHash: protocol.SemanticHash(node)}

	anyDirty := fullyDirty || len(dirtyTiles) > 0
	mode := p.resolveMode(key, anyDirty)
	if fullyDirty {
		mode = ModeFull
	}

	for _, coord := range dirtyTiles {
		addr, ok := resolve(node.Source, coord)
		if !ok {
			return CompositeNodePlan{}, fmt.Errorf("gpuexec: frame plan: no tile resolves for %+v at %+v", node.Source, coord)
		}
		*instances = append(*instances, TileInstance{
			DocOriginX: coord.X * model.TileImageSide,
			DocOriginY: coord.Y * model.TileImageSide,
			AtlasLayer: addr.AtlasLayer,
			TileIndex:  addr.TileIndex,
		})
	}

	return CompositeNodePlan{Mode: mode, DirtyTiles: dirtyTiles}, nil
}

// resolveMode consults and updates the cache: a semantic-hash mismatch
// forces Full and overwrites the cache entry; an unchanged hash with no
// new dirt is Skip; an unchanged hash with dirt is Partial.
func (p *Planner) resolveMode(key cacheKey, anyDirty bool) NodeMode {
	entry, hit := p.cache[key]
	p.cache[key] = cacheEntry{semanticHash: key.semanticHash}

	if !hit {
		return ModeFull
	}
	if entry.semanticHash != key.semanticHash {
		// Structure changed without the snapshot carrying a fresh
		// revision; treat it as the "first time this identity shows
		// this shape" case and rebuild fully rather than asserting.
		return ModeFull
	}
	if !anyDirty {
		return ModeSkip
	}
	return ModePartial
}

func pathHash(s string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// BatchByDestinationLayer groups tile instances by destination atlas
// layer, so the executor can submit one draw call per atlas page instead
// of one per tile.
func BatchByDestinationLayer(instances []TileInstance) map[uint32][]TileInstance {
	batches := make(map[uint32][]TileInstance)
	for _, inst := range instances {
		batches[inst.AtlasLayer] = append(batches[inst.AtlasLayer], inst)
	}
	return batches
}
