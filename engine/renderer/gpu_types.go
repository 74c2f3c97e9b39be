package renderer

import "github.com/cogentcore/webgpu/wgpu"

// Texture is a GPU texture owned by whoever created it.
type Texture interface {
	Label() string
	Width() uint32
	Height() uint32
	Layers() uint32
	MipLevelCount() uint32
	Format() wgpu.TextureFormat

	// CreateView creates a view over a mip and layer range of the texture.
	//
	// Parameters:
	//   - desc: the view range and dimension
	//
	// Returns:
	//   - TextureView: the new view, owned by the caller
	//   - error: an error if the view could not be created
	CreateView(desc TextureViewDescriptor) (TextureView, error)

	Release()
}

// TextureView is a bindable view over part of a Texture.
type TextureView interface {
	Label() string
	Release()
}

// Sampler is a GPU sampler.
type Sampler interface {
	Label() string
	Release()
}

// Buffer is a GPU buffer.
type Buffer interface {
	Label() string
	Size() uint64
	Release()
}

// ShaderModule is a compiled WGSL module.
type ShaderModule interface {
	Label() string
	Release()
}

// BindGroupLayout describes the shape of a binding set.
type BindGroupLayout interface {
	Label() string
	Release()
}

// BindGroup is a binding set: concrete resources matching a BindGroupLayout.
type BindGroup interface {
	Label() string
	Release()
}

// RenderPipeline is a compiled render pipeline.
type RenderPipeline interface {
	Label() string
	Release()
}

// CommandBuffer is a finished recording ready for submission.
type CommandBuffer interface {
	Release()
}

// SurfaceTexture is the presentable texture acquired for one frame.
type SurfaceTexture interface {
	// View returns the render target view of the surface texture.
	View() TextureView

	// Release abandons the texture without presenting it. Renderer.Present releases a presented texture.
	Release()
}

// CommandEncoder records the GPU work of one frame.
type CommandEncoder interface {
	// BeginRenderPass starts a render pass that clears and stores a single color target.
	//
	// Parameters:
	//   - desc: the color target and clear value
	//
	// Returns:
	//   - RenderPassEncoder: the pass; End must be called before the next pass begins
	BeginRenderPass(desc RenderPassDescriptor) RenderPassEncoder

	// CopyTextureToTexture copies mip 0, layer 0 of src into dst.
	//
	// Parameters:
	//   - src: the source texture, created with CopySrc usage
	//   - dst: the destination texture, created with CopyDst usage
	//   - width: the copy width in pixels
	//   - height: the copy height in pixels
	CopyTextureToTexture(src, dst Texture, width, height uint32)

	// Finish ends recording.
	//
	// Returns:
	//   - CommandBuffer: the recorded commands
	//   - error: an error if validation failed
	Finish() (CommandBuffer, error)

	Release()
}

// RenderPassEncoder records draw commands into one render pass.
type RenderPassEncoder interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(index uint32, bg BindGroup)
	SetVertexBuffer(slot uint32, buf Buffer)
	SetIndexBuffer(buf Buffer, format wgpu.IndexFormat)
	DrawIndexed(indexCount, instanceCount uint32)
	End()
}

// TextureDescriptor describes a 2D texture or a 2D texture array.
type TextureDescriptor struct {
	Label         string
	Width         uint32
	Height        uint32
	Layers        uint32 // zero is treated as one
	MipLevelCount uint32 // zero is treated as one
	Format        wgpu.TextureFormat
	Usage         wgpu.TextureUsage
}

// TextureViewDescriptor selects the part of a texture a view exposes.
// Zero counts select every remaining mip level or layer.
type TextureViewDescriptor struct {
	Label           string
	Dimension       wgpu.TextureViewDimension
	BaseMipLevel    uint32
	MipLevelCount   uint32
	BaseArrayLayer  uint32
	ArrayLayerCount uint32
}

// BufferDescriptor describes a buffer. When Contents is set it is uploaded after creation
// and Size defaults to its length.
type BufferDescriptor struct {
	Label    string
	Size     uint64
	Usage    wgpu.BufferUsage
	Contents []byte
}

// BindGroupEntry binds exactly one of Buffer, TextureView or Sampler at Binding.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	TextureView TextureView
	Sampler     Sampler
}

// BindGroupDescriptor describes a binding set.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// RenderPipelineDescriptor describes a single-target render pipeline without depth.
type RenderPipelineDescriptor struct {
	Label              string
	VertexModule       ShaderModule
	VertexEntryPoint   string
	VertexBuffers      []wgpu.VertexBufferLayout
	FragmentModule     ShaderModule
	FragmentEntryPoint string
	BindGroupLayouts   []BindGroupLayout
	TargetFormat       wgpu.TextureFormat
	Blend              *wgpu.BlendState
	WriteMask          wgpu.ColorWriteMask
	Topology           wgpu.PrimitiveTopology
	FrontFace          wgpu.FrontFace
	CullMode           wgpu.CullMode
}

// RenderPassDescriptor describes a render pass with one color attachment.
type RenderPassDescriptor struct {
	Label      string
	Target     TextureView
	ClearColor wgpu.Color
}
