package document

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"

	"github.com/SunastanS/glaphica/model"
	"github.com/SunastanS/glaphica/protocol"
)

// IngestError wraps a raster decode or tiling failure.
type IngestError struct {
	Op    string
	Cause error
}

func (e *IngestError) Error() string { return "document: ingest " + e.Op + ": " + e.Cause.Error() }
func (e *IngestError) Unwrap() error { return e.Cause }

// Allocator is the subset of atlas.Store the ingest path needs: allocate a
// fresh slot and stage its upload. Kept as a consumer-defined interface so
// document does not import atlas directly.
type Allocator interface {
	Allocate() (protocol.TileKey, error)
	EnqueueUpload(key protocol.TileKey, bytes []byte) error
}

// DecodeRaster decodes a PNG or JPEG stream into an image.Image. The format
// is sniffed from the stream header; callers that already know the format
// can call image/png or image/jpeg directly instead.
func DecodeRaster(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, &IngestError{Op: "decode", Cause: err}
	}
	if format != "png" && format != "jpeg" {
		return nil, &IngestError{Op: "decode", Cause: fmt.Errorf("unsupported format %q", format)}
	}
	return img, nil
}

// Ingest splits src into TileImageSide x TileImageSide tiles, converts each
// tile to premultiplied RGBA8, allocates a fresh atlas slot per tile via
// alloc, and writes the tile into the layer's TileImage at the
// corresponding TileCoord. originX/originY place src's top-left corner in
// the layer's tile-coordinate space, in pixels.
//
// Ingesting an N x N RGBA image then reading back each tile's usable rect
// must reproduce the original bytes exactly, so no color-space conversion
// or resampling is applied here — only a model-conversion to premultiplied
// RGBA8, which is lossless for images that are already in that form.
func Ingest(alloc Allocator, img *TileImage, src image.Image, originX, originY int) error {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	rgba := toPremultipliedRGBA(src)

	const side = model.TileImageSide
	tilesX := (w + side - 1) / side
	tilesY := (h + side - 1) / side

	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			tileBytes := extractTile(rgba, tx*side, ty*side, side, side)

			key, err := alloc.Allocate()
			if err != nil {
				return &IngestError{Op: "allocate", Cause: err}
			}
			if err := alloc.EnqueueUpload(key, tileBytes); err != nil {
				return &IngestError{Op: "enqueue_upload", Cause: err}
			}

			coord := model.TileCoord{
				X: int32(originX/side + tx),
				Y: int32(originY/side + ty),
			}
			img.SetTile(coord, key)
		}
	}
	return nil
}

// toPremultipliedRGBA converts an arbitrary image.Image to *image.RGBA
// (premultiplied alpha), using x/image/draw's Src op so no blending
// artifacts are introduced by the conversion itself.
func toPremultipliedRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

// extractTile reads a side x side block from src starting at (x0, y0) in
// src's coordinate space, zero-filling any portion that falls outside
// src's bounds (partial tiles at the raster's right/bottom edge).
func extractTile(src *image.RGBA, x0, y0, side, tileH int) []byte {
	out := make([]byte, side*tileH*4)
	b := src.Bounds()
	for y := 0; y < tileH; y++ {
		sy := b.Min.Y + y0 + y
		if sy < b.Min.Y || sy >= b.Max.Y {
			continue
		}
		rowOff := src.PixOffset(b.Min.X, sy)
		for x := 0; x < side; x++ {
			sx := b.Min.X + x0 + x
			if sx < b.Min.X || sx >= b.Max.X {
				continue
			}
			srcOff := rowOff + (sx-b.Min.X)*4
			dstOff := (y*side + x) * 4
			copy(out[dstOff:dstOff+4], src.Pix[srcOff:srcOff+4])
		}
	}
	return out
}
