package gpu

import (
	"fmt"

	"github.com/gogpu/wgpu"
)

// Surface wraps a platform presentation surface and the device it was
// configured against, so Present doesn't need the caller to keep both
// around separately.
type Surface struct {
	raw *wgpu.Surface
	dev *wgpu.Device
}

// Configure configures width/height/format/present mode for presentation.
func (s *Surface) Configure(width, height uint32, format wgpu.TextureFormat, presentMode wgpu.PresentMode) error {
	return s.raw.Configure(s.dev, &wgpu.SurfaceConfiguration{
		Width:       width,
		Height:      height,
		Format:      format,
		Usage:       wgpu.TextureUsageRenderAttachment,
		PresentMode: presentMode,
		AlphaMode:   wgpu.CompositeAlphaMode(0),
	})
}

// AcquireFrame acquires the next presentable texture view and whether the
// surface is currently suboptimal (e.g. after a resize).
func (s *Surface) AcquireFrame() (*wgpu.TextureView, *wgpu.SurfaceTexture, bool, error) {
	tex, suboptimal, err := s.raw.GetCurrentTexture()
	if err != nil {
		return nil, nil, false, fmt.Errorf("gpu: acquire surface texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("gpu: create surface texture view: %w", err)
	}
	return view, tex, suboptimal, nil
}

// Present presents a previously acquired surface texture.
func (s *Surface) Present(tex *wgpu.SurfaceTexture) error {
	return s.raw.Present(tex)
}

// Unconfigure removes the surface configuration, e.g. on shutdown.
func (s *Surface) Unconfigure() { s.raw.Unconfigure() }

// Release releases the surface.
func (s *Surface) Release() { s.raw.Release() }
