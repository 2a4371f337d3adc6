// Package gpu adapts the published github.com/gogpu/wgpu module's
// top-level public API into the narrower surface the rest of this module
// needs: one logical device, its queue, and the handful of resource
// creators the GPU executor and tile atlas drain into. It never reaches
// into wgpu's internal hal subpackage directly — only the API a normal
// downstream consumer of the module would import.
package gpu

import (
	"fmt"

	"github.com/gogpu/wgpu"
)

// Device owns one wgpu logical device plus the instance/adapter chain that
// produced it, so Release() can tear down the whole stack in order.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	dev      *wgpu.Device
	queue    *Queue
}

// Open creates a GPU instance, requests the best matching adapter, and
// opens a logical device from it. preference selects discrete vs.
// integrated GPU hints; pass wgpu.PowerPreferenceNone to accept the
// default the backend picks.
func Open(preference wgpu.PowerPreference) (*Device, error) {
	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: preference,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("gpu: request adapter: %w", err)
	}

	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "glaphica-device",
		RequiredLimits: wgpu.DefaultLimits(),
	})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("gpu: request device: %w", err)
	}

	return &Device{
		instance: instance,
		adapter:  adapter,
		dev:      dev,
		queue:    &Queue{raw: dev.Queue()},
	}, nil
}

// Raw returns the underlying wgpu.Device for callers (e.g. gpuexec) that
// need to build pipelines directly against the wgpu descriptor types.
func (d *Device) Raw() *wgpu.Device { return d.dev }

// Queue returns the device's single command queue.
func (d *Device) Queue() *Queue { return d.queue }

// CreateTexture creates a GPU texture from the given descriptor.
func (d *Device) CreateTexture(desc *wgpu.TextureDescriptor) (*wgpu.Texture, error) {
	return d.dev.CreateTexture(desc)
}

// CreateTextureView creates a view into texture.
func (d *Device) CreateTextureView(texture *wgpu.Texture, desc *wgpu.TextureViewDescriptor) (*wgpu.TextureView, error) {
	return d.dev.CreateTextureView(texture, desc)
}

// CreateCommandEncoder creates a single-use command encoder.
func (d *Device) CreateCommandEncoder(label string) (*wgpu.CommandEncoder, error) {
	return d.dev.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
}

// CreateBuffer creates a GPU buffer.
func (d *Device) CreateBuffer(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
	return d.dev.CreateBuffer(desc)
}

// CreateShaderModule loads opaque shader source. The source bytes are
// never interpreted by this module, only handed to the backend.
func (d *Device) CreateShaderModule(label, wgsl string) (*wgpu.ShaderModule, error) {
	return d.dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{Label: label, WGSL: wgsl})
}

// CreateRenderPipeline creates a render pipeline.
func (d *Device) CreateRenderPipeline(desc *wgpu.RenderPipelineDescriptor) (*wgpu.RenderPipeline, error) {
	return d.dev.CreateRenderPipeline(desc)
}

// CreateComputePipeline creates a compute pipeline.
func (d *Device) CreateComputePipeline(desc *wgpu.ComputePipelineDescriptor) (*wgpu.ComputePipeline, error) {
	return d.dev.CreateComputePipeline(desc)
}

// CreateBindGroupLayout creates a bind group layout.
func (d *Device) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error) {
	return d.dev.CreateBindGroupLayout(desc)
}

// CreatePipelineLayout creates a pipeline layout.
func (d *Device) CreatePipelineLayout(desc *wgpu.PipelineLayoutDescriptor) (*wgpu.PipelineLayout, error) {
	return d.dev.CreatePipelineLayout(desc)
}

// CreateBindGroup creates a bind group.
func (d *Device) CreateBindGroup(desc *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	return d.dev.CreateBindGroup(desc)
}

// CreateSampler creates a texture sampler.
func (d *Device) CreateSampler(desc *wgpu.SamplerDescriptor) (*wgpu.Sampler, error) {
	return d.dev.CreateSampler(desc)
}

// CreateSurface creates a presentation surface from platform handles. See
// wgpu.Instance.CreateSurface for the per-platform handle convention.
func (d *Device) CreateSurface(displayHandle, windowHandle uintptr) (*Surface, error) {
	raw, err := d.instance.CreateSurface(displayHandle, windowHandle)
	if err != nil {
		return nil, fmt.Errorf("gpu: create surface: %w", err)
	}
	return &Surface{raw: raw, dev: d.dev}, nil
}

// WaitIdle blocks until all submitted GPU work has completed.
func (d *Device) WaitIdle() error { return d.dev.WaitIdle() }

// Release tears down the device, adapter, and instance in that order.
func (d *Device) Release() {
	d.dev.Release()
	d.adapter.Release()
	d.instance.Release()
}
