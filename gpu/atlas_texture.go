package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"

	"github.com/SunastanS/glaphica/model"
)

// formatFor maps a tile atlas payload kind to its GPU texture format and
// per-pixel byte width. RGBA8Unorm/R32Float/R8Uint are the three payload
// kinds model.PayloadKind enumerates; the latter two are not among the
// "commonly used" constants wgpu re-exports from gputypes, so they are
// referenced straight off gputypes using the same naming convention.
func formatFor(kind model.PayloadKind) (wgpu.TextureFormat, uint32) {
	switch kind {
	case model.PayloadKindRGBA8:
		return wgpu.TextureFormatRGBA8Unorm, 4
	case model.PayloadKindR32Float:
		return gputypes.TextureFormatR32Float, 4
	case model.PayloadKindR8Uint:
		return gputypes.TextureFormatR8Uint, 1
	default:
		return wgpu.TextureFormatRGBA8Unorm, 4
	}
}

// AtlasTexture is a texture-array-backed tile atlas: one GPU texture with
// one array layer per atlas page, each laid out in a slotsPerRow grid of
// model.TileStride-sized slots. It implements atlas.GpuDrainTarget.
type AtlasTexture struct {
	dev           *Device
	texture       *wgpu.Texture
	format        wgpu.TextureFormat
	bytesPerPixel uint32
	slotsPerRow   int
	layerCount    uint32
}

// NewAtlasTexture creates the backing GPU texture array for a tile atlas
// store of the given payload kind, slotsPerRow, and initial layer count.
// layerCount should match the atlas's page count at construction; the
// caller is expected to grow the atlas in lockstep with GrowPage calls by
// recreating the texture (wgpu textures cannot be resized in place).
func NewAtlasTexture(dev *Device, kind model.PayloadKind, slotsPerRow int, layerCount uint32) (*AtlasTexture, error) {
	format, bpp := formatFor(kind)
	side := uint32(slotsPerRow * model.TileStride)

	tex, err := dev.CreateTexture(&wgpu.TextureDescriptor{
		Label:     "tile-atlas",
		Size:      wgpu.Extent3D{Width: side, Height: side, DepthOrArrayLayers: layerCount},
		Dimension: gputypes.TextureDimension2D,
		Format:    format,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create atlas texture: %w", err)
	}

	return &AtlasTexture{
		dev:           dev,
		texture:       tex,
		format:        format,
		bytesPerPixel: bpp,
		slotsPerRow:   slotsPerRow,
		layerCount:    layerCount,
	}, nil
}

// UploadTile writes bytes into the usable (non-gutter) rect of the slot
// at (atlasLayer, slotX, slotY) and, for filterable payload kinds,
// replicates the edge texels into the one-pixel gutter band so bilinear
// sampling never reads across a tile seam.
func (a *AtlasTexture) UploadTile(atlasLayer uint32, slotX, slotY int, bytes []byte, filterable bool) error {
	x0, y0, _, _ := model.UsableRect(slotX, slotY)
	side := uint32(model.TileImageSide)

	if err := a.write(atlasLayer, x0, y0, side, side, bytes); err != nil {
		return err
	}
	if !filterable {
		return nil
	}
	return a.replicateGutter(atlasLayer, slotX, slotY, bytes)
}

// ClearTile zeroes the full slot rect (including gutter) at
// (atlasLayer, slotX, slotY).
func (a *AtlasTexture) ClearTile(atlasLayer uint32, slotX, slotY int) error {
	zero := make([]byte, model.TileStride*model.TileStride*int(a.bytesPerPixel))
	return a.write(atlasLayer, slotX, slotY, model.TileStride, model.TileStride, zero)
}

// write uploads a tightly-packed rectangular region into one array layer.
func (a *AtlasTexture) write(atlasLayer uint32, x, y int, w, h uint32, data []byte) error {
	origin := wgpu.Origin3D{X: uint32(x), Y: uint32(y), Z: atlasLayer}
	size := wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}
	return a.dev.Queue().WriteTextureData(a.texture, origin, data, w*a.bytesPerPixel, size)
}

// gutterWrite is one rectangular upload into the one-pixel gutter band
// surrounding a tile's usable rect.
type gutterWrite struct {
	X, Y int
	W, H uint32
	Data []byte
}

// gutterRegions computes the edge and corner replication writes for the
// gutter band around the usable rect at (slotX, slotY), given the tile's
// interior pixel bytes (tightly packed, bpp bytes per pixel). Pure and
// independent of any GPU call so it can be tested without a device.
func gutterRegions(slotX, slotY, bpp int, interior []byte) []gutterWrite {
	const g = model.TileGutter
	side := model.TileImageSide
	rowStride := side * bpp

	row := func(y int) []byte { return interior[y*rowStride : (y+1)*rowStride] }
	pixel := func(x, y int) []byte { return interior[y*rowStride+x*bpp : y*rowStride+(x+1)*bpp] }

	x0, y0, _, _ := model.UsableRect(slotX, slotY)

	writes := []gutterWrite{
		{x0, y0 - g, uint32(side), g, row(0)},
		{x0, y0 + side, uint32(side), g, row(side - 1)},
	}
	for dy := 0; dy < side; dy++ {
		writes = append(writes,
			gutterWrite{x0 - g, y0 + dy, g, 1, pixel(0, dy)},
			gutterWrite{x0 + side, y0 + dy, g, 1, pixel(side-1, dy)},
		)
	}

	corners := [][2]int{
		{x0 - g, y0 - g},
		{x0 + side, y0 - g},
		{x0 - g, y0 + side},
		{x0 + side, y0 + side},
	}
	cornerPixel := [][2]int{{0, 0}, {side - 1, 0}, {0, side - 1}, {side - 1, side - 1}}
	for i, c := range corners {
		px, py := cornerPixel[i][0], cornerPixel[i][1]
		writes = append(writes, gutterWrite{c[0], c[1], g, g, pixel(px, py)})
	}
	return writes
}

// replicateGutter copies the one-pixel border of the usable rect into the
// surrounding gutter band so sampling never crosses into a neighboring
// tile's content at the atlas slot boundary.
func (a *AtlasTexture) replicateGutter(atlasLayer uint32, slotX, slotY int, interior []byte) error {
	for _, w := range gutterRegions(slotX, slotY, int(a.bytesPerPixel), interior) {
		if err := a.write(atlasLayer, w.X, w.Y, w.W, w.H, w.Data); err != nil {
			return err
		}
	}
	return nil
}

// View creates a texture view over one array layer, for binding into a
// render or compute pass.
func (a *AtlasTexture) View(layer uint32) (*wgpu.TextureView, error) {
	return a.dev.CreateTextureView(a.texture, &wgpu.TextureViewDescriptor{
		Format:          a.format,
		Dimension:       gputypes.TextureViewDimension2D,
		BaseArrayLayer:  layer,
		ArrayLayerCount: 1,
	})
}

// Release releases the underlying GPU texture.
func (a *AtlasTexture) Release() { a.texture.Release() }
