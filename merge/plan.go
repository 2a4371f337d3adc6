package merge

import (
	"github.com/SunastanS/glaphica/model"
	"github.com/SunastanS/glaphica/protocol"
)

// TileMapping is the per-destination-coordinate triple a merge plan
// produces: which base tile (if any) the stroke paints over, which stroke
// buffer tile supplies the new content, and which fresh tile key the
// output will be committed under.
type TileMapping struct {
	Coord         model.TileCoord
	BaseTileKey   protocol.TileKey // zero if the coord had no prior content
	StrokeTileKey protocol.TileKey
	OutputTileKey protocol.TileKey
}

// MergePlan is the result of plan_merge: one mapping per dirty tile
// coordinate, ready for submit().
type MergePlan struct {
	Session   protocol.StrokeSessionID
	Layer     protocol.LayerID
	BlendMode protocol.BlendMode
	Mappings  []TileMapping
}

// BaseLookup resolves the current base tile key for a coordinate in the
// destination layer, or false if the layer has no content there yet.
type BaseLookup func(coord model.TileCoord) (protocol.TileKey, bool)

// OutputAllocator allocates a fresh atlas slot for a merge plan's output
// tile. Kept as a function type (rather than importing atlas.Store
// directly) so plan construction has no GPU-package dependency.
type OutputAllocator func() (protocol.TileKey, error)

// PlanMerge computes, per destination tile coordinate, the
// (base, stroke_buffer, output) triple a composite pass needs to blend a
// finished stroke into its layer.
//
// Invariants enforced before returning: every output coordinate appears at
// most once; every stroke buffer tile key appears at exactly one
// coordinate; the dirty coordinate set equals the mapping coordinate set
// equals the output coordinate set. Any violation fails fast with a
// *TileMergeError rather than returning a partially-correct plan.
func PlanMerge(
	session protocol.StrokeSessionID,
	layer protocol.LayerID,
	blend protocol.BlendMode,
	dirtyTiles []model.TileCoord,
	strokeTileAt func(model.TileCoord) (protocol.TileKey, bool),
	base BaseLookup,
	allocOutput OutputAllocator,
) (MergePlan, error) {
	seenCoord := make(map[model.TileCoord]struct{}, len(dirtyTiles))
	seenStrokeKey := make(map[protocol.TileKey]struct{}, len(dirtyTiles))

	plan := MergePlan{Session: session, Layer: layer, BlendMode: blend}

	for _, coord := range dirtyTiles {
		if _, dup := seenCoord[coord]; dup {
			return MergePlan{}, &TileMergeError{
				Kind:   ErrDuplicateOutput,
				Detail: "dirty tile coordinate listed more than once",
			}
		}
		seenCoord[coord] = struct{}{}

		strokeKey, ok := strokeTileAt(coord)
		if !ok {
			return MergePlan{}, &TileMergeError{
				Kind:   ErrCoordSetMismatch,
				Detail: "dirty coordinate has no corresponding stroke buffer tile",
			}
		}
		if _, dup := seenStrokeKey[strokeKey]; dup {
			return MergePlan{}, &TileMergeError{
				Kind:   ErrCoordSetMismatch,
				Detail: "stroke buffer tile key mapped to more than one coordinate",
			}
		}
		seenStrokeKey[strokeKey] = struct{}{}

		baseKey, _ := base(coord) // zero value if absent: painting onto blank

		outputKey, err := allocOutput()
		if err != nil {
			return MergePlan{}, err
		}

		plan.Mappings = append(plan.Mappings, TileMapping{
			Coord:         coord,
			BaseTileKey:   baseKey,
			StrokeTileKey: strokeKey,
			OutputTileKey: outputKey,
		})
	}

	if len(plan.Mappings) != len(dirtyTiles) {
		return MergePlan{}, &TileMergeError{
			Kind:   ErrCoordSetMismatch,
			Detail: "mapping count does not equal dirty tile count",
		}
	}

	return plan, nil
}
