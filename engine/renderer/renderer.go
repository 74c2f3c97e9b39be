package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// Renderer is the GPU device abstraction used by the passes and the compositor.
// It creates resources, records frames through CommandEncoders and presents the surface.
// Every resource it returns is owned by the caller and must be Released.
type Renderer interface {
	// SurfaceFormat returns the texture format of the presentable surface.
	//
	// Returns:
	//   - wgpu.TextureFormat: the format chosen when the surface was last configured
	SurfaceFormat() wgpu.TextureFormat

	// SurfaceSize returns the size the surface was last configured with.
	//
	// Returns:
	//   - width, height: the surface size in pixels
	SurfaceSize() (width, height uint32)

	// ConfigureSurface (re)configures the presentable surface.
	// This is required when the surface size changes, such as when the window is resized.
	// No surface texture may be held while it is called.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height uint32)

	// SetPresentMode sets the present mode used the next time the surface is configured.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// CreateShaderModule compiles WGSL source into a shader module.
	//
	// Parameters:
	//   - label: the debug label
	//   - source: the WGSL source
	//
	// Returns:
	//   - ShaderModule: the module
	//   - error: an error if the source did not compile
	CreateShaderModule(label, source string) (ShaderModule, error)

	// CreateTexture creates a texture.
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// WriteTexture uploads RGBA8 pixels into mip 0 of every layer the staging data holds.
	//
	// Parameters:
	//   - tex: the destination texture, created with CopyDst usage
	//   - data: the pixels, one layer after another
	//
	// Returns:
	//   - error: an error if the staging data does not fit the texture
	WriteTexture(tex Texture, data common.TextureStagingData) error

	// CreateSampler creates a sampler. Zero fields in data fall back to linear filtering and repeat addressing.
	CreateSampler(label string, data common.SamplerStagingData) (Sampler, error)

	// CreateBuffer creates a buffer, uploading desc.Contents when set.
	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// WriteBuffer schedules an upload of data into buf at offset.
	WriteBuffer(buf Buffer, offset uint64, data []byte)

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error)

	// CreateBindGroup creates a binding set.
	CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error)

	// CreateRenderPipeline creates a render pipeline and its pipeline layout.
	CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error)

	// CreateCommandEncoder starts recording a frame.
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// AcquireSurfaceTexture acquires the next presentable texture.
	//
	// Returns:
	//   - SurfaceTexture: the texture to render the final pass into
	//   - error: ErrSurfaceLost, ErrSurfaceOutdated, ErrSurfaceTimeout, ErrOutOfMemory or ErrDeviceLost
	//     (possibly joined with the native error)
	AcquireSurfaceTexture() (SurfaceTexture, error)

	// Submit submits a finished command buffer to the queue and releases it.
	Submit(cb CommandBuffer)

	// Present presents the acquired surface texture.
	Present()

	// Release releases the device, the surface and the instance.
	Release()
}

// NewRenderer creates a Renderer for the given window and configures its surface to the window size.
//
// Parameters:
//   - backendType: the GPU backend to use
//   - win: the window providing the surface
//   - options: functional options applied before the device is created
//
// Returns:
//   - Renderer: the newly created renderer
//   - error: an error if no adapter or device could be obtained
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) (Renderer, error) {
	cfg := &rendererConfig{
		presentMode: PresentModeVSync,
	}
	for _, option := range options {
		option(cfg)
	}

	switch backendType {
	case BackendTypeWGPU:
		r, err := newWGPURenderer(win.SurfaceDescriptor(), cfg)
		if err != nil {
			return nil, err
		}
		r.ConfigureSurface(uint32(win.Width()), uint32(win.Height()))
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported renderer backend type %d", backendType)
	}
}
