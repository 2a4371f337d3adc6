package gpu

import "github.com/gogpu/wgpu"

// Sentinel errors re-exported from wgpu, so callers outside this package
// never need to import wgpu just to compare against them.
var (
	ErrDeviceLost      = wgpu.ErrDeviceLost
	ErrOutOfMemory     = wgpu.ErrOutOfMemory
	ErrSurfaceLost     = wgpu.ErrSurfaceLost
	ErrSurfaceOutdated = wgpu.ErrSurfaceOutdated
	ErrTimeout         = wgpu.ErrTimeout
	ErrReleased        = wgpu.ErrReleased
)
