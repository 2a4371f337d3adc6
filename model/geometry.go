// Package model holds the process-wide tile geometry constants shared by
// every other package. It is the single source of truth for tile stride,
// gutter, and usable image side.
package model

// TileStride is the side length, in pixels, of one atlas slot (S).
const TileStride = 128

// TileGutter is the one-pixel border replicated around each tile's usable
// area to keep filtered sampling safe at tile boundaries (G).
const TileGutter = 1

// TileImageSide is the usable side length of one tile, excluding the
// gutter on both edges (I = S - 2G).
const TileImageSide = TileStride - 2*TileGutter

// PayloadKind distinguishes the pixel format family of a tile atlas store.
type PayloadKind uint8

const (
	// PayloadKindRGBA8 holds 8-bit-per-channel RGBA premultiplied color.
	PayloadKindRGBA8 PayloadKind = iota
	// PayloadKindR32Float holds single-channel 32-bit float data (e.g. brush
	// dab accumulation buffers).
	PayloadKindR32Float
	// PayloadKindR8Uint holds single-channel 8-bit unsigned integer data.
	PayloadKindR8Uint
)

// String returns a human-readable name for the payload kind.
func (k PayloadKind) String() string {
	switch k {
	case PayloadKindRGBA8:
		return "rgba8"
	case PayloadKindR32Float:
		return "r32float"
	case PayloadKindR8Uint:
		return "r8uint"
	default:
		return "unknown"
	}
}

// Filterable reports whether the payload kind is safe to sample with
// bilinear filtering. Non-filterable payloads (float accumulation buffers)
// must not have their gutter band written.
func (k PayloadKind) Filterable() bool {
	return k == PayloadKindRGBA8
}

// TileCoord identifies one I x I tile within a layer's virtual image, in
// units of TileImageSide.
type TileCoord struct {
	X, Y int32
}

// SlotRect returns the pixel rectangle, in atlas-page-local coordinates,
// occupied by the slot at the given slot index for a page of the given
// width in slots-per-row.
func SlotRect(slotInRow int, slotsPerRow int) (x, y int) {
	row := slotInRow / slotsPerRow
	col := slotInRow % slotsPerRow
	return col * TileStride, row * TileStride
}

// UsableRect returns the pixel rectangle of the usable (non-gutter) area
// within a slot whose origin is (slotX, slotY).
func UsableRect(slotX, slotY int) (x0, y0, x1, y1 int) {
	return slotX + TileGutter, slotY + TileGutter, slotX + TileGutter + TileImageSide, slotY + TileGutter + TileImageSide
}
