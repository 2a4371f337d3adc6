package gpu

import (
	"github.com/gogpu/wgpu"
)

// Queue wraps wgpu.Queue, adding the texture-region write path alongside
// WriteBuffer/ReadBuffer. wgpu.Extent3D and wgpu.Origin3D are public
// aliases onto the HAL's own 3D-size/origin types, used across every
// backend's WriteTexture implementation; WriteTextureData assumes the
// pinned wgpu release surfaces the matching Queue.WriteTexture entry
// point the same way it surfaces WriteBuffer and ReadBuffer.
type Queue struct {
	raw *wgpu.Queue
}

// Submit submits recorded command buffers for execution and blocks until
// the GPU fence for this batch has passed.
func (q *Queue) Submit(buffers ...*wgpu.CommandBuffer) error {
	return q.raw.Submit(buffers...)
}

// WriteBuffer uploads bytes directly into a GPU buffer at offset.
func (q *Queue) WriteBuffer(buffer *wgpu.Buffer, offset uint64, data []byte) error {
	return q.raw.WriteBuffer(buffer, offset, data)
}

// WriteTextureData uploads tightly-packed data into a rectangular region
// of one array layer of texture, at origin, sized size.
func (q *Queue) WriteTextureData(texture *wgpu.Texture, origin wgpu.Origin3D, data []byte, bytesPerRow uint32, size wgpu.Extent3D) error {
	return q.raw.WriteTexture(texture, origin, data, bytesPerRow, size)
}
